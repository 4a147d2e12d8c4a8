package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitwatch/verifier/internal/service"
	"github.com/transitwatch/verifier/internal/types"
)

func newTestModerationService(t *testing.T, store *memStore) *service.ModerationService {
	t.Helper()
	publisher := newTestPublishService(t, store)
	svc, err := service.NewModerationService(store, publisher, nil)
	require.NoError(t, err)
	return svc
}

func TestModeration_RoleGating(t *testing.T) {
	store := newMemStore()
	store.addUser("alice", 40, types.RoleUser)
	svc := newTestModerationService(t, store)

	_, err := svc.ListQueue(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrUnauthenticated)

	_, err = svc.ListQueue(context.Background(), "ghost")
	assert.ErrorIs(t, err, types.ErrUnauthenticated)

	_, err = svc.ListQueue(context.Background(), "alice")
	assert.ErrorIs(t, err, types.ErrForbidden)

	err = svc.Reject(context.Background(), "alice", uuid.New(), "nope")
	assert.ErrorIs(t, err, types.ErrForbidden)
}

func TestListQueue_PriorityOrder(t *testing.T) {
	store := newMemStore()
	store.addUser("mod", 200, types.RoleModerator)
	store.addUser("alice", 40, types.RoleUser)
	svc := newTestModerationService(t, store)

	now := time.Now().UTC()
	low := seedPending(t, store, types.Reporter{UserID: "alice", Reputation: 40, ReportedAt: now})

	high := types.PendingIncident{
		ID:                uuid.New(),
		Kind:              types.KindAccident,
		Status:            types.PendingStatusPending,
		Location:          types.Location{Latitude: 48.85, Longitude: 2.35},
		Reporters:         []types.Reporter{{UserID: "alice", Reputation: 40, ReportedAt: now}},
		TotalReports:      1,
		ThresholdRequired: 1.0,
		CreatedAt:         now,
		LastReportAt:      now,
		ExpiresAt:         now.Add(types.PendingTTL),
	}
	require.NoError(t, store.CreatePendingIncident(context.Background(), high))
	require.NoError(t, store.EnqueueModeration(context.Background(), types.ModeratorQueueItem{
		ID:                uuid.New(),
		PendingIncidentID: high.ID,
		Priority:          types.PriorityForKind(high.Kind),
		Reason:            "below auto-publish threshold",
		CreatedAt:         now.Add(time.Minute),
	}))

	entries, err := svc.ListQueue(context.Background(), "mod")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// The severe candidate outranks the older low-priority one.
	assert.Equal(t, high.ID, entries[0].Pending.ID)
	assert.Equal(t, types.PriorityHigh, entries[0].Item.Priority)
	assert.Equal(t, low.ID, entries[1].Pending.ID)
}

func TestApprove(t *testing.T) {
	store := newMemStore()
	store.addUser("mod", 200, types.RoleModerator)
	store.addUser("alice", 40, types.RoleUser)
	svc := newTestModerationService(t, store)

	pending := seedPending(t, store,
		types.Reporter{UserID: "alice", Reputation: 40, ReportedAt: time.Now().UTC()},
	)

	result, err := svc.Approve(context.Background(), "mod", pending.ID, "confirmed on site")
	require.NoError(t, err)
	require.NotNil(t, result.Incident)
	assert.Equal(t, "mod", result.Incident.ReportedBy)
	require.Len(t, result.RewardedUsers, 1)
	assert.Equal(t, "alice", result.RewardedUsers[0].UserID)
	assert.Greater(t, result.RewardedUsers[0].Delta, 0)

	depth, err := store.ModerationQueueDepth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	_, err = svc.Approve(context.Background(), "mod", pending.ID, "again")
	assert.ErrorIs(t, err, types.ErrInvalidState)
}

func TestApprove_BonusMultiplier(t *testing.T) {
	store := newMemStore()
	store.addUser("mod", 200, types.RoleModerator)
	store.addUser("alice", 40, types.RoleUser)
	store.addUser("bob", 40, types.RoleUser)

	now := time.Now().UTC()
	publisher := newTestPublishService(t, store)
	moderation, err := service.NewModerationService(store, publisher, nil)
	require.NoError(t, err)

	approved := seedPending(t, store, types.Reporter{UserID: "alice", Reputation: 40, ReportedAt: now})
	auto := seedPending(t, store, types.Reporter{UserID: "bob", Reputation: 40, ReportedAt: now})
	// Align the decay clocks so only the multiplier differs.
	store.mu.Lock()
	store.pending[auto.ID].CreatedAt = store.pending[approved.ID].CreatedAt
	store.mu.Unlock()

	result, err := moderation.Approve(context.Background(), "mod", approved.ID, "")
	require.NoError(t, err)
	require.Len(t, result.RewardedUsers, 1)

	_, autoAwards, err := publisher.PublishFromPending(context.Background(), auto.ID, service.PublishContext{
		Multiplier: service.AutoPublishMultiplier,
		ReportedBy: types.ReportedBySystem,
		Trigger:    "auto",
	})
	require.NoError(t, err)
	require.Len(t, autoAwards, 1)

	assert.Greater(t, result.RewardedUsers[0].Delta, autoAwards[0].Delta)
}

func TestReject(t *testing.T) {
	store := newMemStore()
	store.addUser("mod", 200, types.RoleModerator)
	store.addUser("alice", 40, types.RoleUser)
	svc := newTestModerationService(t, store)

	pending := seedPending(t, store,
		types.Reporter{UserID: "alice", Reputation: 40, ReportedAt: time.Now().UTC()},
	)

	require.NoError(t, svc.Reject(context.Background(), "mod", pending.ID, "no such disruption"))

	stored, err := store.GetPendingIncident(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, types.PendingStatusRejected, stored.Status)
}

func TestFlagUserForSpam(t *testing.T) {
	store := newMemStore()
	store.addUser("mod", 200, types.RoleModerator)
	store.addUser("spammer", 5, types.RoleUser)
	svc := newTestModerationService(t, store)

	result, err := svc.FlagUserForSpam(context.Background(), "mod", "spammer", "burst of fabricated reports")
	require.NoError(t, err)
	assert.Equal(t, 25.0, result.NewSuspiciousScore)

	result, err = svc.FlagUserForSpam(context.Background(), "mod", "spammer", "still at it")
	require.NoError(t, err)
	assert.Equal(t, 50.0, result.NewSuspiciousScore)

	_, err = svc.FlagUserForSpam(context.Background(), "mod", "ghost", "who")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestResolveIncident(t *testing.T) {
	store := newMemStore()
	store.addUser("mod", 200, types.RoleModerator)
	store.addUser("alice", 40, types.RoleUser)
	svc := newTestModerationService(t, store)

	pending := seedPending(t, store,
		types.Reporter{UserID: "alice", Reputation: 40, ReportedAt: time.Now().UTC()},
	)
	result, err := svc.Approve(context.Background(), "mod", pending.ID, "")
	require.NoError(t, err)

	require.NoError(t, svc.ResolveIncident(context.Background(), "mod", result.Incident.ID, true))

	incident, err := store.GetIncident(context.Background(), result.Incident.ID)
	require.NoError(t, err)
	assert.Equal(t, types.IncidentStatusResolved, incident.Status)
	assert.True(t, incident.IsFake)
	assert.NotNil(t, incident.ResolvedAt)

	err = svc.ResolveIncident(context.Background(), "mod", result.Incident.ID, false)
	assert.ErrorIs(t, err, types.ErrInvalidState)
}
