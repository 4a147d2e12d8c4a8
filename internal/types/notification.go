package types

type IncidentClass string

const (
	// ClassSevere covers accidents and vehicle failures.
	ClassSevere IncidentClass = "CLASS_1"
	// ClassDisruption covers everything else.
	ClassDisruption IncidentClass = "CLASS_2"
)

// ClassForKind maps a report kind to its notification class.
func ClassForKind(kind ReportKind) IncidentClass {
	if kind.IsSevere() {
		return ClassSevere
	}
	return ClassDisruption
}

type NotificationPriority string

const (
	NotifyCritical NotificationPriority = "CRITICAL"
	NotifyHigh     NotificationPriority = "HIGH"
	NotifyMedium   NotificationPriority = "MEDIUM"
	NotifyLow      NotificationPriority = "LOW"
)

// NotificationDecision says whether and how urgently a published incident
// should be surfaced to one user.
type NotificationDecision struct {
	ShouldNotify bool                 `json:"should_notify"`
	Priority     NotificationPriority `json:"priority,omitempty"`
}

// FavoriteRoute is the slice of a user's saved route that notification
// targeting cares about.
type FavoriteRoute struct {
	LineIDs      []string `json:"line_ids"`
	NotifyAlways bool     `json:"notify_always"`
}
