package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/transitwatch/verifier/internal/geo"
	"github.com/transitwatch/verifier/internal/types"
)

const (
	PENDING_INCIDENTS_TABLE = "pending_incidents"
	PENDING_REPORTERS_TABLE = "pending_reporters"
)

const pendingColumns = `id, kind, description, status, latitude, longitude, line_ids, delay_minutes,
	total_reports, aggregate_reputation, threshold_score, threshold_required,
	created_at, last_report_at, expires_at, published_incident_id, rejected_by, rejected_reason`

func scanPending(row pgx.Row) (*types.PendingIncident, error) {
	var p types.PendingIncident
	err := row.Scan(
		&p.ID, &p.Kind, &p.Description, &p.Status,
		&p.Location.Latitude, &p.Location.Longitude, &p.LineIDs, &p.DelayMinutes,
		&p.TotalReports, &p.AggregateReputation, &p.ThresholdScore, &p.ThresholdRequired,
		&p.CreatedAt, &p.LastReportAt, &p.ExpiresAt,
		&p.PublishedIncidentID, &p.RejectedBy, &p.RejectedReason,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *PostgresBackend) loadReporters(ctx context.Context, pendingID uuid.UUID) ([]types.Reporter, error) {
	query := fmt.Sprintf(`
		SELECT user_id, reputation, reported_at
		FROM %s
		WHERE pending_incident_id = $1
		ORDER BY reported_at`, PENDING_REPORTERS_TABLE)

	rows, err := p.pool.Query(ctx, query, pendingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reporters: %w", err)
	}
	defer rows.Close()

	var reporters []types.Reporter
	for rows.Next() {
		var r types.Reporter
		if err := rows.Scan(&r.UserID, &r.Reputation, &r.ReportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reporter: %w", err)
		}
		reporters = append(reporters, r)
	}
	return reporters, rows.Err()
}

func (p *PostgresBackend) CreatePendingIncident(ctx context.Context, pending types.PendingIncident) error {
	return p.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		insert := fmt.Sprintf(`
			INSERT INTO %s (id, kind, description, status, latitude, longitude, line_ids, delay_minutes,
				total_reports, aggregate_reputation, threshold_score, threshold_required,
				created_at, last_report_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			PENDING_INCIDENTS_TABLE)

		_, err := tx.Exec(ctx, insert,
			pending.ID, pending.Kind, pending.Description, pending.Status,
			pending.Location.Latitude, pending.Location.Longitude, pending.LineIDs, pending.DelayMinutes,
			pending.TotalReports, pending.AggregateReputation, pending.ThresholdScore, pending.ThresholdRequired,
			pending.CreatedAt, pending.LastReportAt, pending.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to create pending incident: %w", err)
		}

		for _, r := range pending.Reporters {
			insertReporter := fmt.Sprintf(`
				INSERT INTO %s (pending_incident_id, user_id, reputation, reported_at)
				VALUES ($1, $2, $3, $4)`, PENDING_REPORTERS_TABLE)
			if _, err := tx.Exec(ctx, insertReporter, pending.ID, r.UserID, r.Reputation, r.ReportedAt); err != nil {
				return fmt.Errorf("failed to insert reporter: %w", err)
			}
		}
		return nil
	})
}

func (p *PostgresBackend) GetPendingIncident(ctx context.Context, id uuid.UUID) (*types.PendingIncident, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, pendingColumns, PENDING_INCIDENTS_TABLE)

	pending, err := scanPending(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get pending incident: %w", err)
	}

	pending.Reporters, err = p.loadReporters(ctx, id)
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// FindMatchingCandidate returns the most recent PENDING candidate of the
// same kind created within the aggregation window whose location falls in
// the bounding box, or nil when no candidate matches.
func (p *PostgresBackend) FindMatchingCandidate(ctx context.Context, kind types.ReportKind, box geo.BoundingBox, since time.Time) (*types.PendingIncident, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE kind = $1
		  AND status = 'PENDING'
		  AND created_at >= $2
		  AND latitude BETWEEN $3 AND $4
		  AND longitude BETWEEN $5 AND $6
		ORDER BY created_at DESC
		LIMIT 1`, pendingColumns, PENDING_INCIDENTS_TABLE)

	pending, err := scanPending(p.pool.QueryRow(ctx, query,
		kind, since, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find matching candidate: %w", err)
	}

	pending.Reporters, err = p.loadReporters(ctx, pending.ID)
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// AddReporter appends one identity/reputation pair to a candidate. The
// primary key on (pending_incident_id, user_id) makes duplicate
// submission detectable without a read-then-write race; the aggregate
// counters are bumped with commutative updates in the same transaction.
func (p *PostgresBackend) AddReporter(ctx context.Context, pendingID uuid.UUID, rep types.Reporter) error {
	return p.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		insert := fmt.Sprintf(`
			INSERT INTO %s (pending_incident_id, user_id, reputation, reported_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (pending_incident_id, user_id) DO NOTHING`, PENDING_REPORTERS_TABLE)

		tag, err := tx.Exec(ctx, insert, pendingID, rep.UserID, rep.Reputation, rep.ReportedAt)
		if err != nil {
			return fmt.Errorf("failed to insert reporter: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return types.ErrAlreadyReported
		}

		update := fmt.Sprintf(`
			UPDATE %s
			SET total_reports = total_reports + 1,
			    aggregate_reputation = aggregate_reputation + $2,
			    last_report_at = GREATEST(last_report_at, $3)
			WHERE id = $1 AND status = 'PENDING'`, PENDING_INCIDENTS_TABLE)

		tag, err = tx.Exec(ctx, update, pendingID, rep.Reputation, rep.ReportedAt)
		if err != nil {
			return fmt.Errorf("failed to update candidate counters: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// candidate was published or rejected between match and append
			return types.ErrInvalidState
		}
		return nil
	})
}

func (p *PostgresBackend) UpdateThresholdScore(ctx context.Context, pendingID uuid.UUID, score float64) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET threshold_score = GREATEST(threshold_score, $2)
		WHERE id = $1`, PENDING_INCIDENTS_TABLE)

	_, err := p.pool.Exec(ctx, query, pendingID, score)
	if err != nil {
		return fmt.Errorf("failed to update threshold score: %w", err)
	}
	return nil
}

func (p *PostgresBackend) ListPendingByReporter(ctx context.Context, userID string) ([]types.PendingIncident, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s pi
		WHERE pi.status = 'PENDING'
		  AND EXISTS (
			SELECT 1 FROM %s pr
			WHERE pr.pending_incident_id = pi.id AND pr.user_id = $1
		  )
		ORDER BY pi.created_at DESC`, pendingColumns, PENDING_INCIDENTS_TABLE, PENDING_REPORTERS_TABLE)

	return p.queryPendingList(ctx, query, userID)
}

func (p *PostgresBackend) ListExpiredPending(ctx context.Context, now time.Time) ([]types.PendingIncident, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE status = 'PENDING' AND expires_at < $1
		ORDER BY expires_at`, pendingColumns, PENDING_INCIDENTS_TABLE)

	return p.queryPendingList(ctx, query, now)
}

func (p *PostgresBackend) queryPendingList(ctx context.Context, query string, args ...any) ([]types.PendingIncident, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending incidents: %w", err)
	}
	defer rows.Close()

	var out []types.PendingIncident
	for rows.Next() {
		pending, err := scanPending(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending incident: %w", err)
		}
		out = append(out, *pending)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Reporters, err = p.loadReporters(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MarkPublishedTx is the promotion compare-and-set: it succeeds only when
// the candidate is still unpublished and in a publishable status. Zero
// rows affected means a concurrent caller won the race; the caller must
// re-fetch and return the winner's incident.
func (p *PostgresBackend) MarkPublishedTx(ctx context.Context, tx pgx.Tx, pendingID, incidentID uuid.UUID) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'THRESHOLD_MET', published_incident_id = $2
		WHERE id = $1
		  AND status IN ('PENDING', 'THRESHOLD_MET')
		  AND published_incident_id IS NULL`, PENDING_INCIDENTS_TABLE)

	tag, err := tx.Exec(ctx, query, pendingID, incidentID)
	if err != nil {
		return fmt.Errorf("failed to mark published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrStoreConflict
	}
	return nil
}

// MarkRejected transitions PENDING -> REJECTED exactly once.
func (p *PostgresBackend) MarkRejected(ctx context.Context, pendingID uuid.UUID, rejectedBy, reason string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = 'REJECTED', rejected_by = $2, rejected_reason = $3
		WHERE id = $1 AND status = 'PENDING'`, PENDING_INCIDENTS_TABLE)

	tag, err := p.pool.Exec(ctx, query, pendingID, rejectedBy, reason)
	if err != nil {
		return fmt.Errorf("failed to mark rejected: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrInvalidState
	}
	return nil
}
