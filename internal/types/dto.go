package types

import (
	"time"

	"github.com/google/uuid"
)

type SubmitReportRequest struct {
	Kind         ReportKind `json:"kind" validate:"required"`
	Description  *string    `json:"description,omitempty" validate:"omitempty,max=1000"`
	Latitude     float64    `json:"latitude" validate:"min=-90,max=90"`
	Longitude    float64    `json:"longitude" validate:"min=-180,max=180"`
	LineIDs      []string   `json:"line_ids,omitempty" validate:"omitempty,max=20,dive,max=64"`
	DelayMinutes *int       `json:"delay_minutes,omitempty" validate:"omitempty,min=0,max=1440"`
}

type SubmitReportResult struct {
	Accepted            bool       `json:"accepted"`
	PendingIncidentID   uuid.UUID  `json:"pending_incident_id"`
	ThresholdProgress   int        `json:"threshold_progress"`
	WasPublished        bool       `json:"was_published"`
	PublishedIncidentID *uuid.UUID `json:"published_incident_id,omitempty"`
	ReputationGained    int        `json:"reputation_gained"`
}

// RateLimitInfo is the remaining-quota breakdown returned by the precheck.
type RateLimitInfo struct {
	RemainingMinute int           `json:"remaining_minute"`
	RemainingHour   int           `json:"remaining_hour"`
	RemainingDay    int           `json:"remaining_day"`
	RetryAfter      time.Duration `json:"retry_after,omitempty"`
}

type CanSubmitResult struct {
	CanSubmit     bool           `json:"can_submit"`
	Reason        string         `json:"reason,omitempty"`
	RateLimitInfo *RateLimitInfo `json:"rate_limit_info,omitempty"`
}

type ApproveReportResult struct {
	Incident      *Incident         `json:"incident"`
	RewardedUsers []ReputationAward `json:"rewarded_users"`
}

type FlagUserResult struct {
	NewSuspiciousScore float64 `json:"new_suspicious_score"`
}
