package types

import "time"

type UserRole string

const (
	RoleUser      UserRole = "USER"
	RoleModerator UserRole = "MODERATOR"
	RoleAdmin     UserRole = "ADMIN"
)

func (r UserRole) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

// User is the external identity record this engine reads and writes.
// Reputation is the reward/penalty currency; trust score is the derived
// display metric recomputed by the background job.
type User struct {
	ID                  string               `json:"id"`
	Reputation          int                  `json:"reputation"`
	TrustScore          float64              `json:"trust_score"`
	TrustScoreBreakdown *TrustScoreBreakdown `json:"trust_score_breakdown,omitempty"`
	Role                UserRole             `json:"role"`
	CreatedAt           time.Time            `json:"created_at"`
}

// TrustScoreBreakdown keeps the recompute explainable.
type TrustScoreBreakdown struct {
	Base                float64   `json:"base"`
	AccuracyBonus       float64   `json:"accuracy_bonus"`
	HighReputationBonus float64   `json:"high_reputation_bonus"`
	FakePenalty         float64   `json:"fake_penalty"`
	ResolvedReports     int       `json:"resolved_reports"`
	ValidatedReports    int       `json:"validated_reports"`
	FakeReports         int       `json:"fake_reports"`
	ComputedAt          time.Time `json:"computed_at"`
}

// UserReportStats are the per-user inputs to the trust recompute pass,
// derived from resolved incident outcomes.
type UserReportStats struct {
	ResolvedReports  int `json:"resolved_reports"`
	ValidatedReports int `json:"validated_reports"`
	FakeReports      int `json:"fake_reports"`
}
