package types

import (
	"time"

	"github.com/google/uuid"
)

type QueuePriority string

const (
	PriorityHigh   QueuePriority = "HIGH"
	PriorityMedium QueuePriority = "MEDIUM"
	PriorityLow    QueuePriority = "LOW"
)

// PriorityForKind maps a report kind to its moderation priority.
func PriorityForKind(kind ReportKind) QueuePriority {
	switch {
	case kind.IsSevere():
		return PriorityHigh
	case kind == KindTrafficJam:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Rank orders priorities for sorting, highest first.
func (p QueuePriority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// ModeratorQueueItem is the human-review worklist entry. At most one live
// item exists per candidate.
type ModeratorQueueItem struct {
	ID                uuid.UUID     `json:"id"`
	PendingIncidentID uuid.UUID     `json:"pending_incident_id"`
	Priority          QueuePriority `json:"priority"`
	Reason            string        `json:"reason"`
	CreatedAt         time.Time     `json:"created_at"`
}

// QueueEntry is what moderators see: the item joined with its candidate.
type QueueEntry struct {
	Item    ModeratorQueueItem `json:"item"`
	Pending PendingIncident    `json:"pending_incident"`
}
