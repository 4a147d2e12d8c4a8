// Package scoring holds the numeric core of the verification engine: the
// confidence threshold model, reputation reward/penalty deltas, and the
// derived trust score. Everything here is pure so the models can be unit
// tested without a store.
package scoring

import (
	"math"

	"github.com/transitwatch/verifier/config"
	"github.com/transitwatch/verifier/internal/types"
)

// AutoPublishThreshold is the required score for unmoderated promotion.
const AutoPublishThreshold = 1.0

// swarmCap is the ceiling applied when no reporter carries the per-user
// reputation floor; it keeps an all-zero-reputation swarm below the
// auto-publish line regardless of count.
const swarmCap = 0.95

// ThresholdResult is the scored confidence of a candidate.
type ThresholdResult struct {
	Score             float64
	CountProgress     float64
	ReputationProgress float64
	HighRepBonus      float64
	MeetsThreshold    bool
}

type ThresholdScorer struct {
	cfg config.ThresholdConfig
}

func NewThresholdScorer(cfg config.ThresholdConfig) *ThresholdScorer {
	return &ThresholdScorer{cfg: cfg}
}

// Score computes the normalized confidence of a candidate from its
// reporters. The score is monotonically non-decreasing as reporters with
// non-negative reputation are added.
func (s *ThresholdScorer) Score(reporters []types.Reporter, required float64) ThresholdResult {
	if len(reporters) == 0 {
		return ThresholdResult{}
	}

	aggregate := 0
	maxReputation := 0
	hasQualified := false
	for _, r := range reporters {
		rep := r.Reputation
		if rep < 0 {
			rep = 0
		}
		aggregate += rep
		if rep > maxReputation {
			maxReputation = rep
		}
		if rep >= s.cfg.MinReputationPerUser {
			hasQualified = true
		}
	}

	countProgress := math.Min(1, float64(len(reporters))/float64(s.cfg.BaseReportCount))
	repProgress := math.Min(1, float64(aggregate)/float64(s.cfg.BaseReputation))

	score := s.cfg.CountWeight*countProgress + s.cfg.ReputationWeight*repProgress

	bonus := 0.0
	if maxReputation > s.cfg.HighReputationCutoff {
		over := float64(maxReputation-s.cfg.HighReputationCutoff) / float64(s.cfg.HighReputationCutoff)
		bonus = math.Min(s.cfg.HighReputationCap, s.cfg.HighReputationScale*over)
		score *= 1 + bonus
	}

	if !hasQualified && score > swarmCap {
		score = swarmCap
	}
	score = math.Min(1, score)

	return ThresholdResult{
		Score:              score,
		CountProgress:      countProgress,
		ReputationProgress: repProgress,
		HighRepBonus:       bonus,
		MeetsThreshold:     score >= required,
	}
}
