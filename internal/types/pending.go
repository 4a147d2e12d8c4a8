package types

import (
	"time"

	"github.com/google/uuid"
)

type PendingStatus string

const (
	PendingStatusPending      PendingStatus = "PENDING"
	PendingStatusThresholdMet PendingStatus = "THRESHOLD_MET"
	PendingStatusRejected     PendingStatus = "REJECTED"
)

// Reporter is one identity's contribution to a candidate, with the
// reputation it carried at report time.
type Reporter struct {
	UserID     string    `json:"user_id"`
	Reputation int       `json:"reputation"`
	ReportedAt time.Time `json:"reported_at"`
}

// PendingIncident is an unconfirmed candidate aggregating matching reports
// until it is published, rejected, or expires.
type PendingIncident struct {
	ID                  uuid.UUID     `json:"id"`
	Kind                ReportKind    `json:"kind"`
	Description         *string       `json:"description,omitempty"`
	Status              PendingStatus `json:"status"`
	Location            Location      `json:"location"`
	LineIDs             []string      `json:"line_ids"`
	DelayMinutes        *int          `json:"delay_minutes,omitempty"`
	Reporters           []Reporter    `json:"reporters"`
	TotalReports        int           `json:"total_reports"`
	AggregateReputation int           `json:"aggregate_reputation"`
	ThresholdScore      float64       `json:"threshold_score"`
	ThresholdRequired   float64       `json:"threshold_required"`
	CreatedAt           time.Time     `json:"created_at"`
	LastReportAt        time.Time     `json:"last_report_at"`
	ExpiresAt           time.Time     `json:"expires_at"`
	PublishedIncidentID *uuid.UUID    `json:"published_incident_id,omitempty"`
	RejectedBy          *string       `json:"rejected_by,omitempty"`
	RejectedReason      *string       `json:"rejected_reason,omitempty"`
}

func (p *PendingIncident) HasReporter(userID string) bool {
	for _, r := range p.Reporters {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

const (
	// PendingTTL is the lifetime of an unconfirmed candidate.
	PendingTTL = 24 * time.Hour

	// AggregationWindow bounds how old a candidate may be and still absorb
	// new matching reports.
	AggregationWindow = 30 * time.Minute

	// AggregationRadiusKm is the spatial matching radius for deduplication.
	AggregationRadiusKm = 0.5
)
