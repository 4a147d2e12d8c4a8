package types

import (
	"time"

	"github.com/google/uuid"
)

type ReportKind string

const (
	KindAccident       ReportKind = "ACCIDENT"
	KindVehicleFailure ReportKind = "VEHICLE_FAILURE"
	KindTrafficJam     ReportKind = "TRAFFIC_JAM"
	KindDelay          ReportKind = "DELAY"
	KindTrackBlocked   ReportKind = "TRACK_BLOCKED"
	KindOther          ReportKind = "OTHER"
)

// Severe kinds escalate both moderation priority and notification class.
func (k ReportKind) IsSevere() bool {
	return k == KindAccident || k == KindVehicleFailure
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ReportEntry is one accepted report in an identity's history. Entries are
// append-only and trimmed after the retention window.
type ReportEntry struct {
	ID                uuid.UUID  `json:"id"`
	UserID            string     `json:"user_id"`
	PendingIncidentID uuid.UUID  `json:"pending_incident_id"`
	Kind              ReportKind `json:"kind"`
	Location          *Location  `json:"location,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ReportHistory aggregates an identity's recent reporting behavior. Created
// lazily on first report, never deleted.
type ReportHistory struct {
	UserID                  string     `json:"user_id"`
	RateLimitViolations     int        `json:"rate_limit_violations"`
	SuspiciousActivityScore float64    `json:"suspicious_activity_score"`
	LastReportAt            *time.Time `json:"last_report_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
}

const (
	// ReportRetention is how long history entries are kept before trimming.
	ReportRetention = 30 * 24 * time.Hour

	// MaxSuspiciousActivityScore caps the suspicion score.
	MaxSuspiciousActivityScore = 100.0
)
