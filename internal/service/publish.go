package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/transitwatch/verifier/config"
	"github.com/transitwatch/verifier/internal/metrics"
	"github.com/transitwatch/verifier/internal/scoring"
	"github.com/transitwatch/verifier/internal/storage"
	"github.com/transitwatch/verifier/internal/tasks"
	"github.com/transitwatch/verifier/internal/types"
)

const (
	AutoPublishMultiplier    = 1.0
	ModeratorBonusMultiplier = 1.5
)

// PublishContext carries who triggered the promotion and the reward
// multiplier it earns.
type PublishContext struct {
	Multiplier float64
	ReportedBy string
	Trigger    string
}

// PublishService owns the candidate-to-incident promotion and the reward
// distribution that follows it.
type PublishService struct {
	db      storage.DatabaseStorage
	logger  *logrus.Logger
	client  *asynq.Client
	model   *scoring.ReputationModel
	cfg     config.RewardConfig
	metrics *metrics.EngineMetrics
}

func NewPublishService(
	db storage.DatabaseStorage,
	client *asynq.Client,
	cfg config.RewardConfig,
	em *metrics.EngineMetrics,
) (*PublishService, error) {
	if db == nil {
		return nil, fmt.Errorf("database storage cannot be nil")
	}
	return &PublishService{
		db:      db,
		logger:  logrus.WithField("service", "publish").Logger,
		client:  client,
		model:   scoring.NewReputationModel(cfg),
		cfg:     cfg,
		metrics: em,
	}, nil
}

// PublishFromPending promotes a candidate into a published incident
// exactly once. The promotion is a conditional update inside one
// transaction with the incident insert; a caller that loses the race
// re-fetches and returns the winner's incident with no awards of its
// own. Reward failures after a committed publish never roll it back.
func (s *PublishService) PublishFromPending(ctx context.Context, pendingID uuid.UUID, pc PublishContext) (*types.Incident, []types.ReputationAward, error) {
	pending, err := s.db.GetPendingIncident(ctx, pendingID)
	if err != nil {
		return nil, nil, err
	}
	if pending.PublishedIncidentID != nil {
		incident, err := s.db.GetIncident(ctx, *pending.PublishedIncidentID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load published incident: %w", err)
		}
		return incident, nil, nil
	}
	if pending.Status == types.PendingStatusRejected {
		return nil, nil, types.ErrInvalidState
	}

	incident := types.Incident{
		ID:           uuid.New(),
		Kind:         pending.Kind,
		Description:  pending.Description,
		Status:       types.IncidentStatusPublished,
		Location:     pending.Location,
		LineIDs:      pending.LineIDs,
		DelayMinutes: pending.DelayMinutes,
		ReportedBy:   pc.ReportedBy,
		CreatedAt:    time.Now().UTC(),
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.db.CreateIncidentTx(ctx, tx, incident); err != nil {
			return err
		}
		return s.db.MarkPublishedTx(ctx, tx, pendingID, incident.ID)
	})
	if err != nil {
		if errors.Is(err, types.ErrStoreConflict) {
			return s.resolveLostRace(ctx, pendingID)
		}
		return nil, nil, fmt.Errorf("failed to publish candidate: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordPublish(pc.Trigger)
	}
	s.logger.WithFields(logrus.Fields{
		"pending_id":  pendingID,
		"incident_id": incident.ID,
		"trigger":     pc.Trigger,
		"reporters":   len(pending.Reporters),
	}).Info("candidate published")

	if err := s.db.RemoveModerationItem(ctx, pendingID); err != nil {
		s.logger.WithError(err).WithField("pending_id", pendingID).
			Error("failed to remove moderation item after publish")
	}

	awards := s.RewardReporters(ctx, pending, &incident, pc.Multiplier)

	if err := s.enqueueNotification(ctx, incident.ID); err != nil {
		s.logger.WithError(err).WithField("incident_id", incident.ID).
			Error("failed to enqueue notification dispatch")
	}

	return &incident, awards, nil
}

// resolveLostRace handles the loser side of the promotion race: the
// winner already created the incident, so the report was still accepted
// and counted.
func (s *PublishService) resolveLostRace(ctx context.Context, pendingID uuid.UUID) (*types.Incident, []types.ReputationAward, error) {
	pending, err := s.db.GetPendingIncident(ctx, pendingID)
	if err != nil {
		return nil, nil, err
	}
	if pending.PublishedIncidentID == nil {
		return nil, nil, types.ErrStoreConflict
	}
	incident, err := s.db.GetIncident(ctx, *pending.PublishedIncidentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load winner incident: %w", err)
	}
	return incident, nil, nil
}

// RewardReporters applies the accuracy reward to every reporter. Each
// failure is logged and handed to the task queue for retry; no reward is
// silently dropped.
func (s *PublishService) RewardReporters(ctx context.Context, pending *types.PendingIncident, incident *types.Incident, multiplier float64) []types.ReputationAward {
	var awards []types.ReputationAward
	for _, r := range pending.Reporters {
		age := r.ReportedAt.Sub(pending.CreatedAt)
		delta := s.model.Reward(r.Reputation, age, multiplier)

		award, err := s.applyAward(ctx, r.UserID, incident.ID, delta, "report validated")
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":     r.UserID,
				"incident_id": incident.ID,
				"delta":       delta,
			}).Error("failed to apply reward, scheduling retry")
			s.retryAward(r.UserID, incident.ID, delta, "report validated")
			continue
		}
		awards = append(awards, *award)
	}
	return awards
}

func (s *PublishService) applyAward(ctx context.Context, userID string, incidentID uuid.UUID, delta int, reason string) (*types.ReputationAward, error) {
	before, after, err := s.db.AdjustReputation(ctx, userID, delta)
	if err != nil {
		return nil, err
	}
	award := types.ReputationAward{
		ID:         uuid.New(),
		UserID:     userID,
		IncidentID: incidentID,
		Before:     before,
		After:      after,
		Delta:      delta,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.db.RecordAward(ctx, award); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordReward("applied")
	}
	return &award, nil
}

func (s *PublishService) retryAward(userID string, incidentID uuid.UUID, delta int, reason string) {
	if s.client == nil {
		return
	}
	task, err := tasks.NewTask(tasks.TypeReputationAward, tasks.ReputationAwardPayload{
		UserID:     userID,
		IncidentID: incidentID,
		Delta:      delta,
		Reason:     reason,
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to build reward retry task")
		return
	}
	_, err = s.client.Enqueue(task, asynq.Queue(tasks.QUEUE_NAME), asynq.MaxRetry(5))
	if err != nil {
		s.logger.WithError(err).Error("failed to enqueue reward retry task")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordReward("retried")
	}
}

func (s *PublishService) enqueueNotification(ctx context.Context, incidentID uuid.UUID) error {
	if s.client == nil {
		return nil
	}
	task, err := tasks.NewTask(tasks.TypeNotificationDispatch, tasks.NotificationDispatchPayload{
		IncidentID: incidentID,
	})
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task, asynq.Queue(tasks.QUEUE_NAME), asynq.MaxRetry(3))
	return err
}

// RejectPending turns a candidate down and bumps every reporter's
// suspicion score. Reputation is untouched, a single false positive
// should not crater it.
func (s *PublishService) RejectPending(ctx context.Context, pendingID uuid.UUID, rejectedBy, reason string) error {
	pending, err := s.db.GetPendingIncident(ctx, pendingID)
	if err != nil {
		return err
	}
	if err := s.db.MarkRejected(ctx, pendingID, rejectedBy, reason); err != nil {
		return err
	}

	for _, r := range pending.Reporters {
		if _, err := s.db.AddSuspicion(ctx, r.UserID, s.cfg.RejectSuspicionDelta); err != nil {
			s.logger.WithError(err).WithField("user_id", r.UserID).
				Error("failed to bump suspicion after rejection")
		}
	}

	if err := s.db.RemoveModerationItem(ctx, pendingID); err != nil {
		s.logger.WithError(err).WithField("pending_id", pendingID).
			Error("failed to remove moderation item after rejection")
	}

	s.logger.WithFields(logrus.Fields{
		"pending_id":  pendingID,
		"rejected_by": rejectedBy,
		"reason":      reason,
	}).Info("candidate rejected")
	return nil
}
