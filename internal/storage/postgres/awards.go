package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/transitwatch/verifier/internal/types"
)

const REPUTATION_AWARDS_TABLE = "reputation_awards"

func (p *PostgresBackend) RecordAward(ctx context.Context, award types.ReputationAward) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, user_id, incident_id, before_reputation, after_reputation, delta, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, REPUTATION_AWARDS_TABLE)

	_, err := p.pool.Exec(ctx, query,
		award.ID, award.UserID, award.IncidentID,
		award.Before, award.After, award.Delta, award.Reason, award.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record reputation award: %w", err)
	}
	return nil
}

func (p *PostgresBackend) ListAwardsByIncident(ctx context.Context, incidentID uuid.UUID) ([]types.ReputationAward, error) {
	query := fmt.Sprintf(`
		SELECT id, user_id, incident_id, before_reputation, after_reputation, delta, reason, created_at
		FROM %s
		WHERE incident_id = $1
		ORDER BY created_at`, REPUTATION_AWARDS_TABLE)

	rows, err := p.pool.Query(ctx, query, incidentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reputation awards: %w", err)
	}
	defer rows.Close()

	var awards []types.ReputationAward
	for rows.Next() {
		var a types.ReputationAward
		if err := rows.Scan(&a.ID, &a.UserID, &a.IncidentID,
			&a.Before, &a.After, &a.Delta, &a.Reason, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reputation award: %w", err)
		}
		awards = append(awards, a)
	}
	return awards, rows.Err()
}
