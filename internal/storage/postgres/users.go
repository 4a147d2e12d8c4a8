package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/transitwatch/verifier/internal/types"
)

const USERS_TABLE = "users"

func (p *PostgresBackend) FindUserByID(ctx context.Context, userID string) (*types.User, error) {
	query := fmt.Sprintf(`
		SELECT id, reputation, trust_score, trust_score_breakdown, role, created_at
		FROM %s
		WHERE id = $1`, USERS_TABLE)

	var user types.User
	var breakdown []byte
	err := p.pool.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Reputation,
		&user.TrustScore,
		&breakdown,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if len(breakdown) > 0 {
		var bd types.TrustScoreBreakdown
		if err := json.Unmarshal(breakdown, &bd); err != nil {
			return nil, fmt.Errorf("failed to decode trust breakdown: %w", err)
		}
		user.TrustScoreBreakdown = &bd
	}

	return &user, nil
}

func (p *PostgresBackend) ListUserIDs(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s ORDER BY id`, USERS_TABLE)

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AdjustReputation applies the delta with a single atomic update and
// returns the before/after values for the audit record.
func (p *PostgresBackend) AdjustReputation(ctx context.Context, userID string, delta int) (int, int, error) {
	query := fmt.Sprintf(`
		UPDATE %s u
		SET reputation = GREATEST(0, u.reputation + $2)
		FROM (SELECT reputation AS old_reputation FROM %s WHERE id = $1 FOR UPDATE) prev
		WHERE u.id = $1
		RETURNING prev.old_reputation, u.reputation`, USERS_TABLE, USERS_TABLE)

	var before, after int
	err := p.pool.QueryRow(ctx, query, userID, delta).Scan(&before, &after)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, types.ErrNotFound
		}
		return 0, 0, fmt.Errorf("failed to adjust reputation: %w", err)
	}

	return before, after, nil
}

func (p *PostgresBackend) UpdateTrustScore(ctx context.Context, userID string, score float64, breakdown types.TrustScoreBreakdown) error {
	buf, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("failed to encode trust breakdown: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET trust_score = $2, trust_score_breakdown = $3
		WHERE id = $1`, USERS_TABLE)

	tag, err := p.pool.Exec(ctx, query, userID, score, buf)
	if err != nil {
		return fmt.Errorf("failed to update trust score: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

// GetUserReportStats derives the trust recompute inputs from resolved
// incident outcomes joined through the user's candidate contributions.
func (p *PostgresBackend) GetUserReportStats(ctx context.Context, userID string) (types.UserReportStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE i.status = 'RESOLVED'),
			COUNT(*) FILTER (WHERE i.status = 'RESOLVED' AND NOT i.is_fake),
			COUNT(*) FILTER (WHERE i.is_fake)
		FROM pending_reporters pr
		JOIN pending_incidents pi ON pi.id = pr.pending_incident_id
		JOIN incidents i ON i.id = pi.published_incident_id
		WHERE pr.user_id = $1`

	var stats types.UserReportStats
	err := p.pool.QueryRow(ctx, query, userID).Scan(
		&stats.ResolvedReports,
		&stats.ValidatedReports,
		&stats.FakeReports,
	)
	if err != nil {
		return types.UserReportStats{}, fmt.Errorf("failed to get report stats: %w", err)
	}
	return stats, nil
}
