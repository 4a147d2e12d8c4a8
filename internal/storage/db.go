package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transitwatch/verifier/internal/geo"
	"github.com/transitwatch/verifier/internal/types"
)

type DatabaseStorage interface {
	Close() error
	Pool() *pgxpool.Pool
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error

	// Users
	FindUserByID(ctx context.Context, userID string) (*types.User, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	AdjustReputation(ctx context.Context, userID string, delta int) (before int, after int, err error)
	UpdateTrustScore(ctx context.Context, userID string, score float64, breakdown types.TrustScoreBreakdown) error
	GetUserReportStats(ctx context.Context, userID string) (types.UserReportStats, error)

	// Report history
	GetReportHistory(ctx context.Context, userID string) (*types.ReportHistory, error)
	GetReportEntries(ctx context.Context, userID string, since time.Time) ([]types.ReportEntry, error)
	AppendReportEntry(ctx context.Context, entry types.ReportEntry) error
	RecordRateLimitViolation(ctx context.Context, userID string, suspicionDelta float64) error
	AddSuspicion(ctx context.Context, userID string, delta float64) (float64, error)
	TrimReportEntries(ctx context.Context, olderThan time.Time) (int64, error)

	// Pending incidents
	CreatePendingIncident(ctx context.Context, pending types.PendingIncident) error
	GetPendingIncident(ctx context.Context, id uuid.UUID) (*types.PendingIncident, error)
	FindMatchingCandidate(ctx context.Context, kind types.ReportKind, box geo.BoundingBox, since time.Time) (*types.PendingIncident, error)
	AddReporter(ctx context.Context, pendingID uuid.UUID, rep types.Reporter) error
	UpdateThresholdScore(ctx context.Context, pendingID uuid.UUID, score float64) error
	ListPendingByReporter(ctx context.Context, userID string) ([]types.PendingIncident, error)
	ListExpiredPending(ctx context.Context, now time.Time) ([]types.PendingIncident, error)
	MarkPublishedTx(ctx context.Context, tx pgx.Tx, pendingID, incidentID uuid.UUID) error
	MarkRejected(ctx context.Context, pendingID uuid.UUID, rejectedBy, reason string) error

	// Incidents
	CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident types.Incident) error
	GetIncident(ctx context.Context, id uuid.UUID) (*types.Incident, error)
	ResolveIncident(ctx context.Context, id uuid.UUID, isFake bool) error

	// Moderator queue
	EnqueueModeration(ctx context.Context, item types.ModeratorQueueItem) error
	ListModerationQueue(ctx context.Context) ([]types.QueueEntry, error)
	RemoveModerationItem(ctx context.Context, pendingID uuid.UUID) error
	ModerationQueueDepth(ctx context.Context) (int, error)

	// Reputation awards
	RecordAward(ctx context.Context, award types.ReputationAward) error
	ListAwardsByIncident(ctx context.Context, incidentID uuid.UUID) ([]types.ReputationAward, error)
}
