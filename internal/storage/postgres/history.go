package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/transitwatch/verifier/internal/types"
)

const (
	REPORT_HISTORIES_TABLE = "report_histories"
	REPORT_ENTRIES_TABLE   = "report_entries"
)

func (p *PostgresBackend) GetReportHistory(ctx context.Context, userID string) (*types.ReportHistory, error) {
	query := fmt.Sprintf(`
		SELECT user_id, rate_limit_violations, suspicious_activity_score, last_report_at, created_at
		FROM %s
		WHERE user_id = $1`, REPORT_HISTORIES_TABLE)

	var history types.ReportHistory
	err := p.pool.QueryRow(ctx, query, userID).Scan(
		&history.UserID,
		&history.RateLimitViolations,
		&history.SuspiciousActivityScore,
		&history.LastReportAt,
		&history.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get report history: %w", err)
	}
	return &history, nil
}

func (p *PostgresBackend) GetReportEntries(ctx context.Context, userID string, since time.Time) ([]types.ReportEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, pending_incident_id, kind, latitude, longitude, created_at
		FROM %s
		WHERE user_id = $1 AND created_at >= $2
		ORDER BY created_at DESC`, REPORT_ENTRIES_TABLE)

	rows, err := p.pool.Query(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query report entries: %w", err)
	}
	defer rows.Close()

	var entries []types.ReportEntry
	for rows.Next() {
		var e types.ReportEntry
		var lat, lng *float64
		if err := rows.Scan(&e.ID, &e.UserID, &e.PendingIncidentID, &e.Kind, &lat, &lng, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report entry: %w", err)
		}
		if lat != nil && lng != nil {
			e.Location = &types.Location{Latitude: *lat, Longitude: *lng}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AppendReportEntry records an accepted report and bumps the history row,
// creating it lazily on the identity's first report. Runs in one
// transaction so a concurrent append from the same identity cannot be
// lost.
func (p *PostgresBackend) AppendReportEntry(ctx context.Context, entry types.ReportEntry) error {
	return p.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var lat, lng *float64
		if entry.Location != nil {
			lat = &entry.Location.Latitude
			lng = &entry.Location.Longitude
		}

		insertEntry := fmt.Sprintf(`
			INSERT INTO %s (id, user_id, pending_incident_id, kind, latitude, longitude, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`, REPORT_ENTRIES_TABLE)
		_, err := tx.Exec(ctx, insertEntry,
			entry.ID, entry.UserID, entry.PendingIncidentID, entry.Kind, lat, lng, entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert report entry: %w", err)
		}

		upsertHistory := fmt.Sprintf(`
			INSERT INTO %s (user_id, last_report_at)
			VALUES ($1, $2)
			ON CONFLICT (user_id) DO UPDATE
			SET last_report_at = GREATEST(%s.last_report_at, EXCLUDED.last_report_at)`,
			REPORT_HISTORIES_TABLE, REPORT_HISTORIES_TABLE)
		_, err = tx.Exec(ctx, upsertHistory, entry.UserID, entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert report history: %w", err)
		}

		return nil
	})
}

// RecordRateLimitViolation increments the violation counter and suspicion
// score with a single commutative update.
func (p *PostgresBackend) RecordRateLimitViolation(ctx context.Context, userID string, suspicionDelta float64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, rate_limit_violations, suspicious_activity_score)
		VALUES ($1, 1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET rate_limit_violations = %s.rate_limit_violations + 1,
		    suspicious_activity_score = LEAST($3, %s.suspicious_activity_score + $2)`,
		REPORT_HISTORIES_TABLE, REPORT_HISTORIES_TABLE, REPORT_HISTORIES_TABLE)

	_, err := p.pool.Exec(ctx, query, userID, suspicionDelta, types.MaxSuspiciousActivityScore)
	if err != nil {
		return fmt.Errorf("failed to record rate limit violation: %w", err)
	}
	return nil
}

// AddSuspicion bumps the suspicion score and returns the new value.
func (p *PostgresBackend) AddSuspicion(ctx context.Context, userID string, delta float64) (float64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, suspicious_activity_score)
		VALUES ($1, LEAST($3, $2))
		ON CONFLICT (user_id) DO UPDATE
		SET suspicious_activity_score = LEAST($3, %s.suspicious_activity_score + $2)
		RETURNING suspicious_activity_score`,
		REPORT_HISTORIES_TABLE, REPORT_HISTORIES_TABLE)

	var score float64
	err := p.pool.QueryRow(ctx, query, userID, delta, types.MaxSuspiciousActivityScore).Scan(&score)
	if err != nil {
		return 0, fmt.Errorf("failed to add suspicion: %w", err)
	}
	return score, nil
}

// TrimReportEntries deletes entries past the retention window. Histories
// themselves are never deleted.
func (p *PostgresBackend) TrimReportEntries(ctx context.Context, olderThan time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE created_at < $1`, REPORT_ENTRIES_TABLE)

	tag, err := p.pool.Exec(ctx, query, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to trim report entries: %w", err)
	}
	return tag.RowsAffected(), nil
}
