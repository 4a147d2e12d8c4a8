package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/transitwatch/verifier/config"
	"github.com/transitwatch/verifier/internal/types"
)

func TestTrustCalculator_Idempotent(t *testing.T) {
	c := NewTrustCalculator(config.DefaultEngineConfig().Trust)
	now := time.Now()
	stats := types.UserReportStats{ResolvedReports: 10, ValidatedReports: 8, FakeReports: 1}

	first, _ := c.Compute(250, stats, now)
	second, _ := c.Compute(250, stats, now)

	assert.Equal(t, first, second)
}

func TestTrustCalculator_Clamps(t *testing.T) {
	cfg := config.DefaultEngineConfig().Trust
	c := NewTrustCalculator(cfg)
	now := time.Now()

	low, bd := c.Compute(0, types.UserReportStats{ResolvedReports: 5, FakeReports: 5}, now)
	assert.Equal(t, cfg.ScoreMin, low)
	assert.Equal(t, cfg.BaseMin, bd.Base)

	high, bd := c.Compute(100000, types.UserReportStats{ResolvedReports: 20, ValidatedReports: 20}, now)
	assert.Equal(t, cfg.BaseMax, bd.Base)
	assert.LessOrEqual(t, high, cfg.ScoreMax)
}

func TestTrustCalculator_AccuracyBonus(t *testing.T) {
	c := NewTrustCalculator(config.DefaultEngineConfig().Trust)
	now := time.Now()

	accurate, _ := c.Compute(100, types.UserReportStats{ResolvedReports: 10, ValidatedReports: 10}, now)
	sloppy, _ := c.Compute(100, types.UserReportStats{ResolvedReports: 10, ValidatedReports: 3}, now)

	assert.Greater(t, accurate, sloppy)
}

func TestTrustCalculator_HighReputationBonusOnlyAboveCutoff(t *testing.T) {
	cfg := config.DefaultEngineConfig().Trust
	c := NewTrustCalculator(cfg)
	now := time.Now()

	_, below := c.Compute(cfg.HighReputationCutoff, types.UserReportStats{}, now)
	_, above := c.Compute(cfg.HighReputationCutoff+1, types.UserReportStats{}, now)

	assert.Zero(t, below.HighReputationBonus)
	assert.Equal(t, cfg.HighReputationBonus, above.HighReputationBonus)
}

func TestTrustCalculator_FakePenaltyScalesWithCount(t *testing.T) {
	c := NewTrustCalculator(config.DefaultEngineConfig().Trust)
	now := time.Now()

	_, one := c.Compute(150, types.UserReportStats{ResolvedReports: 10, ValidatedReports: 5, FakeReports: 1}, now)
	_, three := c.Compute(150, types.UserReportStats{ResolvedReports: 10, ValidatedReports: 5, FakeReports: 3}, now)

	assert.Equal(t, 3*one.FakePenalty, three.FakePenalty)
}
