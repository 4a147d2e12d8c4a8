package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/transitwatch/verifier/internal/types"
)

const INCIDENTS_TABLE = "incidents"

// CreateIncidentTx inserts the published incident inside the promotion
// transaction so it commits or rolls back together with the candidate's
// compare-and-set.
func (p *PostgresBackend) CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident types.Incident) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, kind, description, status, latitude, longitude, line_ids, delay_minutes,
			reported_by, is_fake, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, INCIDENTS_TABLE)

	_, err := tx.Exec(ctx, query,
		incident.ID, incident.Kind, incident.Description, incident.Status,
		incident.Location.Latitude, incident.Location.Longitude, incident.LineIDs, incident.DelayMinutes,
		incident.ReportedBy, incident.IsFake, incident.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}
	return nil
}

func (p *PostgresBackend) GetIncident(ctx context.Context, id uuid.UUID) (*types.Incident, error) {
	query := fmt.Sprintf(`
		SELECT id, kind, description, status, latitude, longitude, line_ids, delay_minutes,
			reported_by, is_fake, created_at, resolved_at
		FROM %s
		WHERE id = $1`, INCIDENTS_TABLE)

	var inc types.Incident
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&inc.ID, &inc.Kind, &inc.Description, &inc.Status,
		&inc.Location.Latitude, &inc.Location.Longitude, &inc.LineIDs, &inc.DelayMinutes,
		&inc.ReportedBy, &inc.IsFake, &inc.CreatedAt, &inc.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	return &inc, nil
}

// ResolveIncident closes a published incident exactly once. The fake flag
// is only ever set here, off the moderation path.
func (p *PostgresBackend) ResolveIncident(ctx context.Context, id uuid.UUID, isFake bool) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'RESOLVED', is_fake = $2, resolved_at = NOW()
		WHERE id = $1 AND status = 'PUBLISHED'`, INCIDENTS_TABLE)

	tag, err := p.pool.Exec(ctx, query, id, isFake)
	if err != nil {
		return fmt.Errorf("failed to resolve incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrInvalidState
	}
	return nil
}
