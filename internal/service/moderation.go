package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/transitwatch/verifier/internal/metrics"
	"github.com/transitwatch/verifier/internal/storage"
	"github.com/transitwatch/verifier/internal/types"
)

// flagSuspicionDelta is the suspicion bump a moderator spam flag applies.
const flagSuspicionDelta = 25.0

type Moderation interface {
	ListQueue(ctx context.Context, moderatorID string) ([]types.QueueEntry, error)
	Approve(ctx context.Context, moderatorID string, pendingID uuid.UUID, notes string) (*types.ApproveReportResult, error)
	Reject(ctx context.Context, moderatorID string, pendingID uuid.UUID, reason string) error
	FlagUserForSpam(ctx context.Context, moderatorID, userID, reason string) (*types.FlagUserResult, error)
	ResolveIncident(ctx context.Context, moderatorID string, incidentID uuid.UUID, isFake bool) error
}

var _ Moderation = (*ModerationService)(nil)

// ModerationService is the human-review surface: worklist, approve,
// reject, spam flagging, and incident resolution.
type ModerationService struct {
	db        storage.DatabaseStorage
	logger    *logrus.Logger
	publisher *PublishService
	metrics   *metrics.EngineMetrics
}

func NewModerationService(db storage.DatabaseStorage, publisher *PublishService, em *metrics.EngineMetrics) (*ModerationService, error) {
	if db == nil {
		return nil, fmt.Errorf("database storage cannot be nil")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publish service cannot be nil")
	}
	return &ModerationService{
		db:        db,
		logger:    logrus.WithField("service", "moderation").Logger,
		publisher: publisher,
		metrics:   em,
	}, nil
}

func (s *ModerationService) requireModerator(ctx context.Context, moderatorID string) (*types.User, error) {
	if moderatorID == "" {
		return nil, types.ErrUnauthenticated
	}
	user, err := s.db.FindUserByID(ctx, moderatorID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load moderator: %w", err)
	}
	if !user.Role.CanModerate() {
		return nil, types.ErrForbidden
	}
	return user, nil
}

func (s *ModerationService) ListQueue(ctx context.Context, moderatorID string) ([]types.QueueEntry, error) {
	if _, err := s.requireModerator(ctx, moderatorID); err != nil {
		return nil, err
	}
	entries, err := s.db.ListModerationQueue(ctx)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.SetModerationQueueDepth(len(entries))
	}
	return entries, nil
}

// Approve publishes the candidate with the moderator bonus multiplier.
// The queue item is removed as part of the publish, not before.
func (s *ModerationService) Approve(ctx context.Context, moderatorID string, pendingID uuid.UUID, notes string) (*types.ApproveReportResult, error) {
	if _, err := s.requireModerator(ctx, moderatorID); err != nil {
		return nil, err
	}

	pending, err := s.db.GetPendingIncident(ctx, pendingID)
	if err != nil {
		return nil, err
	}
	if pending.Status != types.PendingStatusPending {
		return nil, types.ErrInvalidState
	}

	incident, awards, err := s.publisher.PublishFromPending(ctx, pendingID, PublishContext{
		Multiplier: ModeratorBonusMultiplier,
		ReportedBy: moderatorID,
		Trigger:    "moderator",
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"pending_id":   pendingID,
		"moderator_id": moderatorID,
		"notes":        notes,
	}).Info("candidate approved")

	return &types.ApproveReportResult{
		Incident:      incident,
		RewardedUsers: awards,
	}, nil
}

func (s *ModerationService) Reject(ctx context.Context, moderatorID string, pendingID uuid.UUID, reason string) error {
	if _, err := s.requireModerator(ctx, moderatorID); err != nil {
		return err
	}
	return s.publisher.RejectPending(ctx, pendingID, moderatorID, reason)
}

func (s *ModerationService) FlagUserForSpam(ctx context.Context, moderatorID, userID, reason string) (*types.FlagUserResult, error) {
	if _, err := s.requireModerator(ctx, moderatorID); err != nil {
		return nil, err
	}
	if _, err := s.db.FindUserByID(ctx, userID); err != nil {
		return nil, err
	}

	score, err := s.db.AddSuspicion(ctx, userID, flagSuspicionDelta)
	if err != nil {
		return nil, fmt.Errorf("failed to flag user: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":      userID,
		"moderator_id": moderatorID,
		"reason":       reason,
		"score":        score,
	}).Info("user flagged for spam")

	return &types.FlagUserResult{NewSuspiciousScore: score}, nil
}

// ResolveIncident closes a published incident. Resolutions feed the
// accuracy ratios the trust recompute job reads.
func (s *ModerationService) ResolveIncident(ctx context.Context, moderatorID string, incidentID uuid.UUID, isFake bool) error {
	if _, err := s.requireModerator(ctx, moderatorID); err != nil {
		return err
	}
	if err := s.db.ResolveIncident(ctx, incidentID, isFake); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"incident_id":  incidentID,
		"moderator_id": moderatorID,
		"is_fake":      isFake,
	}).Info("incident resolved")
	return nil
}
