package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transitwatch/verifier/internal/geo"
	"github.com/transitwatch/verifier/internal/storage"
	"github.com/transitwatch/verifier/internal/types"
)

var _ storage.DatabaseStorage = (*memStore)(nil)

// memStore is an in-memory DatabaseStorage with the same conditional
// update semantics as the Postgres backend.
type memStore struct {
	mu        sync.Mutex
	users     map[string]*types.User
	histories map[string]*types.ReportHistory
	entries   []types.ReportEntry
	pending   map[uuid.UUID]*types.PendingIncident
	incidents map[uuid.UUID]*types.Incident
	queue     map[uuid.UUID]types.ModeratorQueueItem
	awards    []types.ReputationAward
	stats     map[string]types.UserReportStats
	trust     map[string]float64
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]*types.User),
		histories: make(map[string]*types.ReportHistory),
		pending:   make(map[uuid.UUID]*types.PendingIncident),
		incidents: make(map[uuid.UUID]*types.Incident),
		queue:     make(map[uuid.UUID]types.ModeratorQueueItem),
		stats:     make(map[string]types.UserReportStats),
		trust:     make(map[string]float64),
	}
}

func (m *memStore) addUser(id string, reputation int, role types.UserRole) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &types.User{
		ID:         id,
		Reputation: reputation,
		TrustScore: 1.0,
		Role:       role,
		CreatedAt:  time.Now(),
	}
}

func (m *memStore) Close() error        { return nil }
func (m *memStore) Pool() *pgxpool.Pool { return nil }

func (m *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (m *memStore) FindUserByID(ctx context.Context, userID string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (m *memStore) ListUserIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) AdjustReputation(ctx context.Context, userID string, delta int) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return 0, 0, types.ErrNotFound
	}
	before := user.Reputation
	after := before + delta
	if after < 0 {
		after = 0
	}
	user.Reputation = after
	return before, after, nil
}

func (m *memStore) UpdateTrustScore(ctx context.Context, userID string, score float64, breakdown types.TrustScoreBreakdown) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return types.ErrNotFound
	}
	user.TrustScore = score
	user.TrustScoreBreakdown = &breakdown
	m.trust[userID] = score
	return nil
}

func (m *memStore) GetUserReportStats(ctx context.Context, userID string) (types.UserReportStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats[userID], nil
}

func (m *memStore) GetReportHistory(ctx context.Context, userID string) (*types.ReportHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history, ok := m.histories[userID]
	if !ok {
		return nil, nil
	}
	clone := *history
	return &clone, nil
}

func (m *memStore) GetReportEntries(ctx context.Context, userID string, since time.Time) ([]types.ReportEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.ReportEntry
	for _, e := range m.entries {
		if e.UserID == userID && !e.CreatedAt.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) AppendReportEntry(ctx context.Context, entry types.ReportEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	history := m.ensureHistoryLocked(entry.UserID)
	at := entry.CreatedAt
	if history.LastReportAt == nil || at.After(*history.LastReportAt) {
		history.LastReportAt = &at
	}
	return nil
}

func (m *memStore) ensureHistoryLocked(userID string) *types.ReportHistory {
	history, ok := m.histories[userID]
	if !ok {
		history = &types.ReportHistory{UserID: userID, CreatedAt: time.Now()}
		m.histories[userID] = history
	}
	return history
}

func (m *memStore) RecordRateLimitViolation(ctx context.Context, userID string, suspicionDelta float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.ensureHistoryLocked(userID)
	history.RateLimitViolations++
	history.SuspiciousActivityScore += suspicionDelta
	if history.SuspiciousActivityScore > types.MaxSuspiciousActivityScore {
		history.SuspiciousActivityScore = types.MaxSuspiciousActivityScore
	}
	return nil
}

func (m *memStore) AddSuspicion(ctx context.Context, userID string, delta float64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := m.ensureHistoryLocked(userID)
	history.SuspiciousActivityScore += delta
	if history.SuspiciousActivityScore > types.MaxSuspiciousActivityScore {
		history.SuspiciousActivityScore = types.MaxSuspiciousActivityScore
	}
	return history.SuspiciousActivityScore, nil
}

func (m *memStore) TrimReportEntries(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var kept []types.ReportEntry
	var trimmed int64
	for _, e := range m.entries {
		if e.CreatedAt.Before(olderThan) {
			trimmed++
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	return trimmed, nil
}

func (m *memStore) CreatePendingIncident(ctx context.Context, pending types.PendingIncident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := pending
	clone.Reporters = append([]types.Reporter(nil), pending.Reporters...)
	m.pending[pending.ID] = &clone
	return nil
}

func (m *memStore) GetPendingIncident(ctx context.Context, id uuid.UUID) (*types.PendingIncident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending, ok := m.pending[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	clone := *pending
	clone.Reporters = append([]types.Reporter(nil), pending.Reporters...)
	return &clone, nil
}

func (m *memStore) FindMatchingCandidate(ctx context.Context, kind types.ReportKind, box geo.BoundingBox, since time.Time) (*types.PendingIncident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *types.PendingIncident
	for _, p := range m.pending {
		if p.Kind != kind || p.Status != types.PendingStatusPending {
			continue
		}
		if p.CreatedAt.Before(since) || !box.Contains(p.Location) {
			continue
		}
		if best == nil || p.CreatedAt.After(best.CreatedAt) {
			best = p
		}
	}
	if best == nil {
		return nil, nil
	}
	clone := *best
	clone.Reporters = append([]types.Reporter(nil), best.Reporters...)
	return &clone, nil
}

func (m *memStore) AddReporter(ctx context.Context, pendingID uuid.UUID, rep types.Reporter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending, ok := m.pending[pendingID]
	if !ok {
		return types.ErrNotFound
	}
	for _, r := range pending.Reporters {
		if r.UserID == rep.UserID {
			return types.ErrAlreadyReported
		}
	}
	if pending.Status != types.PendingStatusPending {
		return types.ErrInvalidState
	}
	pending.Reporters = append(pending.Reporters, rep)
	pending.TotalReports++
	if rep.Reputation > 0 {
		pending.AggregateReputation += rep.Reputation
	}
	if rep.ReportedAt.After(pending.LastReportAt) {
		pending.LastReportAt = rep.ReportedAt
	}
	return nil
}

func (m *memStore) UpdateThresholdScore(ctx context.Context, pendingID uuid.UUID, score float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending, ok := m.pending[pendingID]
	if !ok {
		return types.ErrNotFound
	}
	if score > pending.ThresholdScore {
		pending.ThresholdScore = score
	}
	return nil
}

func (m *memStore) ListPendingByReporter(ctx context.Context, userID string) ([]types.PendingIncident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.PendingIncident
	for _, p := range m.pending {
		if p.Status != types.PendingStatusPending {
			continue
		}
		for _, r := range p.Reporters {
			if r.UserID == userID {
				out = append(out, *p)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) ListExpiredPending(ctx context.Context, now time.Time) ([]types.PendingIncident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.PendingIncident
	for _, p := range m.pending {
		if p.Status == types.PendingStatusPending && p.ExpiresAt.Before(now) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) MarkPublishedTx(ctx context.Context, tx pgx.Tx, pendingID, incidentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending, ok := m.pending[pendingID]
	if !ok {
		return types.ErrNotFound
	}
	if pending.Status == types.PendingStatusRejected || pending.PublishedIncidentID != nil {
		return types.ErrStoreConflict
	}
	pending.Status = types.PendingStatusThresholdMet
	pending.PublishedIncidentID = &incidentID
	return nil
}

func (m *memStore) MarkRejected(ctx context.Context, pendingID uuid.UUID, rejectedBy, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending, ok := m.pending[pendingID]
	if !ok {
		return types.ErrNotFound
	}
	if pending.Status != types.PendingStatusPending {
		return types.ErrInvalidState
	}
	pending.Status = types.PendingStatusRejected
	pending.RejectedBy = &rejectedBy
	pending.RejectedReason = &reason
	return nil
}

func (m *memStore) CreateIncidentTx(ctx context.Context, tx pgx.Tx, incident types.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := incident
	m.incidents[incident.ID] = &clone
	return nil
}

func (m *memStore) GetIncident(ctx context.Context, id uuid.UUID) (*types.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	incident, ok := m.incidents[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	clone := *incident
	return &clone, nil
}

func (m *memStore) ResolveIncident(ctx context.Context, id uuid.UUID, isFake bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	incident, ok := m.incidents[id]
	if !ok {
		return types.ErrNotFound
	}
	if incident.Status != types.IncidentStatusPublished {
		return types.ErrInvalidState
	}
	incident.Status = types.IncidentStatusResolved
	incident.IsFake = isFake
	now := time.Now()
	incident.ResolvedAt = &now
	return nil
}

func (m *memStore) EnqueueModeration(ctx context.Context, item types.ModeratorQueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queue[item.PendingIncidentID]; ok {
		return nil
	}
	m.queue[item.PendingIncidentID] = item
	return nil
}

func (m *memStore) ListModerationQueue(ctx context.Context) ([]types.QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.QueueEntry
	for pendingID, item := range m.queue {
		pending, ok := m.pending[pendingID]
		if !ok {
			continue
		}
		out = append(out, types.QueueEntry{Item: item, Pending: *pending})
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Item.Priority.Rank(), out[j].Item.Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].Item.CreatedAt.Before(out[j].Item.CreatedAt)
	})
	return out, nil
}

func (m *memStore) RemoveModerationItem(ctx context.Context, pendingID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queue, pendingID)
	return nil
}

func (m *memStore) ModerationQueueDepth(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue), nil
}

func (m *memStore) RecordAward(ctx context.Context, award types.ReputationAward) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.awards = append(m.awards, award)
	return nil
}

func (m *memStore) ListAwardsByIncident(ctx context.Context, incidentID uuid.UUID) ([]types.ReputationAward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.ReputationAward
	for _, a := range m.awards {
		if a.IncidentID == incidentID {
			out = append(out, a)
		}
	}
	return out, nil
}
