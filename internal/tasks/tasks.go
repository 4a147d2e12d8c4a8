package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const QUEUE_NAME = "transitwatch-verifier"

const (
	TypeReputationAward      = "reputation:award"
	TypeNotificationDispatch = "notification:dispatch"
	TypeTrustRecompute       = "trust:recompute"
)

// ReputationAwardPayload retries a single reward/penalty application that
// failed inline after publication.
type ReputationAwardPayload struct {
	UserID     string    `json:"user_id"`
	IncidentID uuid.UUID `json:"incident_id"`
	Delta      int       `json:"delta"`
	Reason     string    `json:"reason"`
}

// NotificationDispatchPayload fans a published incident out to the
// notification gateway.
type NotificationDispatchPayload struct {
	IncidentID uuid.UUID `json:"incident_id"`
}

// TrustRecomputePayload recomputes one user's trust score out of band.
type TrustRecomputePayload struct {
	UserID string `json:"user_id"`
}

func NewTask(taskType string, payload any) (*asynq.Task, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("fail to marshal task payload, err: %w", err)
	}
	return asynq.NewTask(taskType, buf), nil
}
