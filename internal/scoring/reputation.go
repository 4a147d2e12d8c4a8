package scoring

import (
	"math"
	"time"

	"github.com/transitwatch/verifier/config"
)

// ReputationModel computes per-report reputation deltas when a candidate
// resolves.
type ReputationModel struct {
	cfg config.RewardConfig
}

func NewReputationModel(cfg config.RewardConfig) *ReputationModel {
	return &ReputationModel{cfg: cfg}
}

// Reward returns the reputation delta for an accurate report.
// notificationAge is how long after the candidate opened the report came
// in: early corroboration earns more, on an exponential decay. Rewards
// shrink as current reputation grows so established identities cannot
// compound without bound. multiplier is 1.0 for auto-threshold
// confirmation and 1.5 for moderator approval.
func (m *ReputationModel) Reward(currentReputation int, notificationAge time.Duration, multiplier float64) int {
	if currentReputation < 0 {
		currentReputation = 0
	}

	recency := math.Exp(-notificationAge.Minutes() / m.cfg.RecencyTau.Minutes())

	scale := float64(m.cfg.DiminishingScale)
	diminishing := scale / (scale + float64(currentReputation))

	delta := float64(m.cfg.BaseReward) * recency * diminishing * multiplier
	if delta < 1 {
		delta = 1
	}
	return int(math.Round(delta))
}

// Penalty returns the (negative) reputation delta for an inaccurate
// report. Low-reputation identities are punished more gently than
// established ones who should know better.
func (m *ReputationModel) Penalty(currentReputation int) int {
	if currentReputation < 0 {
		currentReputation = 0
	}

	scale := float64(m.cfg.DiminishingScale)
	severity := math.Min(1, float64(currentReputation)/scale)

	delta := float64(m.cfg.BasePenalty) * (0.25 + 0.75*severity)
	if delta < 1 {
		delta = 1
	}
	return -int(math.Round(delta))
}
