package scoring

import (
	"math"
	"time"

	"github.com/transitwatch/verifier/config"
	"github.com/transitwatch/verifier/internal/types"
)

// TrustCalculator derives the display/weighting trust score from a user's
// reputation and resolved-report track record. Deterministic: recomputing
// on unchanged inputs yields the same score.
type TrustCalculator struct {
	cfg config.TrustConfig
}

func NewTrustCalculator(cfg config.TrustConfig) *TrustCalculator {
	return &TrustCalculator{cfg: cfg}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Compute returns the trust score and its breakdown.
func (c *TrustCalculator) Compute(reputation int, stats types.UserReportStats, now time.Time) (float64, types.TrustScoreBreakdown) {
	base := clamp(float64(reputation)/c.cfg.ReputationDivisor, c.cfg.BaseMin, c.cfg.BaseMax)

	accuracyBonus := 0.0
	if stats.ResolvedReports > 0 {
		accuracy := float64(stats.ValidatedReports) / float64(stats.ResolvedReports)
		accuracyBonus = c.cfg.AccuracyBonusWeight * accuracy
	}

	highRepBonus := 0.0
	if reputation > c.cfg.HighReputationCutoff {
		highRepBonus = c.cfg.HighReputationBonus
	}

	fakePenalty := c.cfg.FakeReportPenalty * float64(stats.FakeReports)

	score := clamp(base+accuracyBonus+highRepBonus-fakePenalty, c.cfg.ScoreMin, c.cfg.ScoreMax)

	return score, types.TrustScoreBreakdown{
		Base:                base,
		AccuracyBonus:       accuracyBonus,
		HighReputationBonus: highRepBonus,
		FakePenalty:         fakePenalty,
		ResolvedReports:     stats.ResolvedReports,
		ValidatedReports:    stats.ValidatedReports,
		FakeReports:         stats.FakeReports,
		ComputedAt:          now,
	}
}
