package postgres

import (
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var engineMigrations embed.FS

func (p *PostgresBackend) Migrate() error {
	p.logger.Info("Starting database migration...")
	goose.SetBaseFS(engineMigrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(p.pool)
	defer func() {
		_ = db.Close()
	}()
	if err := goose.Up(db, "migrations", goose.WithAllowMissing()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	p.logger.Info("Database migration completed successfully")
	return nil
}
