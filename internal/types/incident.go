package types

import (
	"time"

	"github.com/google/uuid"
)

type IncidentStatus string

const (
	IncidentStatusPublished IncidentStatus = "PUBLISHED"
	IncidentStatusResolved  IncidentStatus = "RESOLVED"
)

// ReportedBySystem marks incidents promoted by the auto-threshold, as
// opposed to a moderator's user ID.
const ReportedBySystem = "system"

// Incident is the published fact. Immutable except for the
// PUBLISHED -> RESOLVED transition and the moderation-only fake flag.
type Incident struct {
	ID           uuid.UUID      `json:"id"`
	Kind         ReportKind     `json:"kind"`
	Description  *string        `json:"description,omitempty"`
	Status       IncidentStatus `json:"status"`
	Location     Location       `json:"location"`
	LineIDs      []string       `json:"line_ids"`
	DelayMinutes *int           `json:"delay_minutes,omitempty"`
	ReportedBy   string         `json:"reported_by"`
	IsFake       bool           `json:"is_fake"`
	CreatedAt    time.Time      `json:"created_at"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
}

// ReputationAward is the audit record of one reward/penalty application.
type ReputationAward struct {
	ID         uuid.UUID `json:"id"`
	UserID     string    `json:"user_id"`
	IncidentID uuid.UUID `json:"incident_id"`
	Before     int       `json:"before"`
	After      int       `json:"after"`
	Delta      int       `json:"delta"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
}
