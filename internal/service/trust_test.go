package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transitwatch/verifier/config"
	"github.com/transitwatch/verifier/internal/service"
	"github.com/transitwatch/verifier/internal/types"
)

func newTestTrustService(t *testing.T, store *memStore) *service.TrustService {
	t.Helper()
	svc, err := service.NewTrustService(store, config.DefaultEngineConfig().Trust, nil)
	require.NoError(t, err)
	return svc
}

func TestRecomputeUser_Idempotent(t *testing.T) {
	store := newMemStore()
	store.addUser("alice", 150, types.RoleUser)
	store.mu.Lock()
	store.stats["alice"] = types.UserReportStats{ResolvedReports: 10, ValidatedReports: 9, FakeReports: 1}
	store.mu.Unlock()

	svc := newTestTrustService(t, store)

	require.NoError(t, svc.RecomputeUser(context.Background(), "alice"))
	first, err := store.FindUserByID(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, first.TrustScoreBreakdown)

	require.NoError(t, svc.RecomputeUser(context.Background(), "alice"))
	second, err := store.FindUserByID(context.Background(), "alice")
	require.NoError(t, err)

	assert.Equal(t, first.TrustScore, second.TrustScore)
	assert.Equal(t, first.TrustScoreBreakdown.Base, second.TrustScoreBreakdown.Base)
	assert.Equal(t, first.TrustScoreBreakdown.AccuracyBonus, second.TrustScoreBreakdown.AccuracyBonus)
}

func TestRecomputeUser_Bounds(t *testing.T) {
	cfg := config.DefaultEngineConfig().Trust

	store := newMemStore()
	store.addUser("newbie", 0, types.RoleUser)
	store.addUser("veteran", 900, types.RoleUser)
	store.mu.Lock()
	store.stats["veteran"] = types.UserReportStats{ResolvedReports: 50, ValidatedReports: 50}
	store.mu.Unlock()

	svc := newTestTrustService(t, store)
	require.NoError(t, svc.RecomputeUser(context.Background(), "newbie"))
	require.NoError(t, svc.RecomputeUser(context.Background(), "veteran"))

	newbie, err := store.FindUserByID(context.Background(), "newbie")
	require.NoError(t, err)
	veteran, err := store.FindUserByID(context.Background(), "veteran")
	require.NoError(t, err)

	assert.GreaterOrEqual(t, newbie.TrustScore, cfg.ScoreMin)
	assert.LessOrEqual(t, veteran.TrustScore, cfg.ScoreMax)
	assert.Greater(t, veteran.TrustScore, newbie.TrustScore)
	assert.Greater(t, veteran.TrustScoreBreakdown.HighReputationBonus, 0.0)
}

func TestRecomputeAll(t *testing.T) {
	store := newMemStore()
	for _, id := range []string{"a", "b", "c", "d"} {
		store.addUser(id, 100, types.RoleUser)
	}

	svc := newTestTrustService(t, store)
	updated, err := svc.RecomputeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, updated)

	for _, id := range []string{"a", "b", "c", "d"} {
		user, err := store.FindUserByID(context.Background(), id)
		require.NoError(t, err)
		assert.NotNil(t, user.TrustScoreBreakdown)
	}
}
