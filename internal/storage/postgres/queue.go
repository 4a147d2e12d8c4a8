package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/transitwatch/verifier/internal/types"
)

const MODERATOR_QUEUE_TABLE = "moderator_queue"

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, c := range parts {
		parts[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(parts, ", ")
}

// EnqueueModeration adds the candidate to the review worklist. The unique
// constraint on pending_incident_id makes repeat enqueues a no-op, so the
// call is safe to retry.
func (p *PostgresBackend) EnqueueModeration(ctx context.Context, item types.ModeratorQueueItem) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, pending_incident_id, priority, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (pending_incident_id) DO NOTHING`, MODERATOR_QUEUE_TABLE)

	_, err := p.pool.Exec(ctx, query,
		item.ID, item.PendingIncidentID, item.Priority, item.Reason, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue moderation item: %w", err)
	}
	return nil
}

// ListModerationQueue returns the worklist joined with each candidate,
// highest priority first, oldest first within a priority.
func (p *PostgresBackend) ListModerationQueue(ctx context.Context) ([]types.QueueEntry, error) {
	query := fmt.Sprintf(`
		SELECT
			mq.id, mq.pending_incident_id, mq.priority, mq.reason, mq.created_at,
			%s
		FROM %s mq
		JOIN %s pi ON pi.id = mq.pending_incident_id
		ORDER BY
			CASE mq.priority WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END,
			mq.created_at`,
		prefixColumns("pi", pendingColumns), MODERATOR_QUEUE_TABLE, PENDING_INCIDENTS_TABLE)

	rows, err := p.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation queue: %w", err)
	}
	defer rows.Close()

	var entries []types.QueueEntry
	for rows.Next() {
		var e types.QueueEntry
		if err := rows.Scan(
			&e.Item.ID, &e.Item.PendingIncidentID, &e.Item.Priority, &e.Item.Reason, &e.Item.CreatedAt,
			&e.Pending.ID, &e.Pending.Kind, &e.Pending.Description, &e.Pending.Status,
			&e.Pending.Location.Latitude, &e.Pending.Location.Longitude, &e.Pending.LineIDs, &e.Pending.DelayMinutes,
			&e.Pending.TotalReports, &e.Pending.AggregateReputation, &e.Pending.ThresholdScore, &e.Pending.ThresholdRequired,
			&e.Pending.CreatedAt, &e.Pending.LastReportAt, &e.Pending.ExpiresAt,
			&e.Pending.PublishedIncidentID, &e.Pending.RejectedBy, &e.Pending.RejectedReason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range entries {
		entries[i].Pending.Reporters, err = p.loadReporters(ctx, entries[i].Pending.ID)
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (p *PostgresBackend) RemoveModerationItem(ctx context.Context, pendingID uuid.UUID) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE pending_incident_id = $1`, MODERATOR_QUEUE_TABLE)

	_, err := p.pool.Exec(ctx, query, pendingID)
	if err != nil {
		return fmt.Errorf("failed to remove moderation item: %w", err)
	}
	return nil
}

func (p *PostgresBackend) ModerationQueueDepth(ctx context.Context) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, MODERATOR_QUEUE_TABLE)

	var depth int
	if err := p.pool.QueryRow(ctx, query).Scan(&depth); err != nil {
		return 0, fmt.Errorf("failed to count moderation queue: %w", err)
	}
	return depth, nil
}
