package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/transitwatch/verifier/internal/storage"
	"github.com/transitwatch/verifier/internal/tasks"
)

// WorkerService hosts the asynq task handlers: reward retries,
// notification dispatch, and out-of-band trust recomputes.
type WorkerService struct {
	db        storage.DatabaseStorage
	logger    *logrus.Logger
	publisher *PublishService
	trust     *TrustService
	notify    *NotifyService
}

func NewWorkerService(
	db storage.DatabaseStorage,
	publisher *PublishService,
	trust *TrustService,
	notify *NotifyService,
) (*WorkerService, error) {
	if db == nil {
		return nil, fmt.Errorf("database storage cannot be nil")
	}
	return &WorkerService{
		db:        db,
		logger:    logrus.WithField("service", "worker").Logger,
		publisher: publisher,
		trust:     trust,
		notify:    notify,
	}, nil
}

// Register wires the task handlers onto the mux.
func (s *WorkerService) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(tasks.TypeReputationAward, s.HandleReputationAward)
	mux.HandleFunc(tasks.TypeNotificationDispatch, s.HandleNotificationDispatch)
	mux.HandleFunc(tasks.TypeTrustRecompute, s.HandleTrustRecompute)
}

// HandleReputationAward retries a reward application that failed inline
// after a publish. asynq redelivers on error until MaxRetry is exhausted.
func (s *WorkerService) HandleReputationAward(ctx context.Context, task *asynq.Task) error {
	var payload tasks.ReputationAwardPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("fail to unmarshal reward payload, err: %w", err)
	}

	award, err := s.publisher.applyAward(ctx, payload.UserID, payload.IncidentID, payload.Delta, payload.Reason)
	if err != nil {
		return fmt.Errorf("fail to apply reward, err: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":     payload.UserID,
		"incident_id": payload.IncidentID,
		"delta":       award.Delta,
	}).Info("retried reward applied")
	return nil
}

func (s *WorkerService) HandleNotificationDispatch(ctx context.Context, task *asynq.Task) error {
	var payload tasks.NotificationDispatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("fail to unmarshal notification payload, err: %w", err)
	}

	incident, err := s.db.GetIncident(ctx, payload.IncidentID)
	if err != nil {
		return fmt.Errorf("fail to load incident, err: %w", err)
	}

	return s.notify.Dispatch(ctx, incident)
}

func (s *WorkerService) HandleTrustRecompute(ctx context.Context, task *asynq.Task) error {
	var payload tasks.TrustRecomputePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("fail to unmarshal trust payload, err: %w", err)
	}
	return s.trust.RecomputeUser(ctx, payload.UserID)
}
