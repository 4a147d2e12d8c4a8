package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/transitwatch/verifier/config"
	"github.com/transitwatch/verifier/internal/types"
)

func reporter(id string, rep int) types.Reporter {
	return types.Reporter{UserID: id, Reputation: rep, ReportedAt: time.Now()}
}

func TestThresholdScorer_Empty(t *testing.T) {
	s := NewThresholdScorer(config.DefaultEngineConfig().Threshold)
	r := s.Score(nil, AutoPublishThreshold)
	assert.Zero(t, r.Score)
	assert.False(t, r.MeetsThreshold)
}

func TestThresholdScorer_SingleLowRepReporter(t *testing.T) {
	s := NewThresholdScorer(config.DefaultEngineConfig().Threshold)
	r := s.Score([]types.Reporter{reporter("u1", 20)}, AutoPublishThreshold)
	assert.Greater(t, r.Score, 0.0)
	assert.False(t, r.MeetsThreshold)
}

func TestThresholdScorer_EnoughCorroborationPublishes(t *testing.T) {
	s := NewThresholdScorer(config.DefaultEngineConfig().Threshold)
	reporters := []types.Reporter{
		reporter("u1", 60),
		reporter("u2", 50),
		reporter("u3", 45),
	}
	r := s.Score(reporters, AutoPublishThreshold)
	assert.Equal(t, 1.0, r.CountProgress)
	assert.Equal(t, 1.0, r.ReputationProgress)
	assert.True(t, r.MeetsThreshold)
}

func TestThresholdScorer_MonotoneInAddedReporters(t *testing.T) {
	s := NewThresholdScorer(config.DefaultEngineConfig().Threshold)

	reporters := []types.Reporter{}
	prev := 0.0
	for i, rep := range []int{0, 5, 15, 40, 80, 250, 0, 30} {
		reporters = append(reporters, reporter(string(rune('a'+i)), rep))
		score := s.Score(reporters, AutoPublishThreshold).Score
		assert.GreaterOrEqual(t, score, prev, "score decreased at reporter %d", i)
		prev = score
	}
}

func TestThresholdScorer_ZeroReputationSwarmCapped(t *testing.T) {
	s := NewThresholdScorer(config.DefaultEngineConfig().Threshold)

	swarm := make([]types.Reporter, 50)
	for i := range swarm {
		swarm[i] = reporter(string(rune('a'+i)), 0)
	}
	r := s.Score(swarm, AutoPublishThreshold)
	assert.False(t, r.MeetsThreshold, "zero-reputation swarm must never auto-publish")
	assert.Less(t, r.Score, AutoPublishThreshold)
}

func TestThresholdScorer_HighRepSingleReporterBonus(t *testing.T) {
	cfg := config.DefaultEngineConfig().Threshold
	s := NewThresholdScorer(cfg)

	plain := s.Score([]types.Reporter{reporter("u1", cfg.HighReputationCutoff)}, AutoPublishThreshold)
	boosted := s.Score([]types.Reporter{reporter("u1", cfg.HighReputationCutoff * 3)}, AutoPublishThreshold)

	assert.Zero(t, plain.HighRepBonus)
	assert.Greater(t, boosted.HighRepBonus, 0.0)
	assert.Greater(t, boosted.Score, plain.Score)
	// bonus is capped
	assert.LessOrEqual(t, boosted.HighRepBonus, cfg.HighReputationCap)

	extreme := s.Score([]types.Reporter{reporter("u1", cfg.HighReputationCutoff * 100)}, AutoPublishThreshold)
	assert.Equal(t, cfg.HighReputationCap, extreme.HighRepBonus)
}

func TestThresholdScorer_TrustedSingleReporterPublishesAlone(t *testing.T) {
	cfg := config.DefaultEngineConfig().Threshold
	s := NewThresholdScorer(cfg)

	r := s.Score([]types.Reporter{reporter("veteran", 600)}, AutoPublishThreshold)
	assert.True(t, r.MeetsThreshold)
	assert.Equal(t, 1.0, r.Score)
}

func TestThresholdScorer_ModeratorBypassRequired(t *testing.T) {
	// moderator approval passes required=0 so any scored candidate meets it
	s := NewThresholdScorer(config.DefaultEngineConfig().Threshold)
	r := s.Score([]types.Reporter{reporter("u1", 1)}, 0)
	assert.True(t, r.MeetsThreshold)
}
