package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"

	"github.com/transitwatch/verifier/config"
	netconfig "github.com/transitwatch/verifier/internal/config"
	"github.com/transitwatch/verifier/internal/geo"
	"github.com/transitwatch/verifier/internal/guard"
	"github.com/transitwatch/verifier/internal/metrics"
	"github.com/transitwatch/verifier/internal/scoring"
	"github.com/transitwatch/verifier/internal/storage"
	"github.com/transitwatch/verifier/internal/types"
)

type Report interface {
	SubmitReport(ctx context.Context, userID string, req types.SubmitReportRequest) (*types.SubmitReportResult, error)
	CanSubmit(ctx context.Context, userID string) (*types.CanSubmitResult, error)
	ListPendingForUser(ctx context.Context, userID string) ([]types.PendingIncident, error)
}

var _ Report = (*ReportService)(nil)

// ReportService runs the submission pipeline: admission guards, candidate
// aggregation, threshold scoring, and auto-publication. History is only
// written once the full pipeline accepts a report.
type ReportService struct {
	db        storage.DatabaseStorage
	redis     *storage.RedisStorage
	logger    *logrus.Logger
	cfg       config.EngineConfig
	limiter   *guard.RateLimiter
	cooldown  *guard.CooldownGuard
	scorer    *scoring.ThresholdScorer
	publisher *PublishService
	sanitizer *bluemonday.Policy
	network   *netconfig.NetworkData
	metrics   *metrics.EngineMetrics
}

func NewReportService(
	db storage.DatabaseStorage,
	redis *storage.RedisStorage,
	cfg config.EngineConfig,
	network *netconfig.NetworkData,
	publisher *PublishService,
	em *metrics.EngineMetrics,
) (*ReportService, error) {
	if db == nil {
		return nil, fmt.Errorf("database storage cannot be nil")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publish service cannot be nil")
	}
	return &ReportService{
		db:        db,
		redis:     redis,
		logger:    logrus.WithField("service", "report").Logger,
		cfg:       cfg,
		limiter:   guard.NewRateLimiter(cfg.RateLimit),
		cooldown:  guard.NewCooldownGuard(cfg.Cooldown),
		scorer:    scoring.NewThresholdScorer(cfg.Threshold),
		publisher: publisher,
		sanitizer: bluemonday.StrictPolicy(),
		network:   network,
		metrics:   em,
	}, nil
}

func (s *ReportService) recordReport(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordReport(outcome)
	}
}

func (s *ReportService) SubmitReport(ctx context.Context, userID string, req types.SubmitReportRequest) (*types.SubmitReportResult, error) {
	if userID == "" {
		return nil, types.ErrUnauthenticated
	}
	user, err := s.db.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	now := time.Now().UTC()
	location := types.Location{Latitude: req.Latitude, Longitude: req.Longitude}

	entries, err := s.db.GetReportEntries(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load report history: %w", err)
	}

	if decision := s.limiter.Check(user.Role, entries, now); !decision.Allowed {
		s.recordReport("rate_limited")
		if err := s.db.RecordRateLimitViolation(ctx, userID, s.cfg.RateLimit.ViolationSuspicionDelta); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).
				Error("failed to record rate limit violation")
		}
		return nil, &types.RateLimitError{Window: decision.Window, RetryAfter: decision.RetryAfter}
	}

	if decision := s.cooldown.Check(entries, req.Kind, location, now); decision.OnCooldown {
		s.recordReport("cooldown")
		return nil, &types.CooldownError{CooldownType: decision.CooldownType, Remaining: decision.Remaining}
	}

	description := req.Description
	if description != nil {
		clean := s.sanitizer.Sanitize(*description)
		description = &clean
	}

	if len(req.LineIDs) == 0 && s.network != nil {
		req.LineIDs = s.inferLines(location)
	}

	reporter := types.Reporter{UserID: userID, Reputation: user.Reputation, ReportedAt: now}

	pending, result, err := s.aggregate(ctx, req, description, location, reporter, now)
	if err != nil {
		if errors.Is(err, types.ErrAlreadyReported) {
			s.recordReport("duplicate")
		} else {
			s.recordReport("error")
		}
		return nil, err
	}

	if result.MeetsThreshold {
		incident, awards, err := s.publisher.PublishFromPending(ctx, pending.ID, PublishContext{
			Multiplier: AutoPublishMultiplier,
			ReportedBy: types.ReportedBySystem,
			Trigger:    "auto",
		})
		if err != nil {
			return nil, fmt.Errorf("failed to publish candidate: %w", err)
		}
		s.appendHistory(ctx, userID, pending.ID, req.Kind, location, now)
		out := &types.SubmitReportResult{
			Accepted:            true,
			PendingIncidentID:   pending.ID,
			ThresholdProgress:   100,
			WasPublished:        true,
			PublishedIncidentID: &incident.ID,
		}
		for _, a := range awards {
			if a.UserID == userID {
				out.ReputationGained = a.Delta
			}
		}
		s.recordReport("accepted")
		return out, nil
	}

	if err := s.enqueueModeration(ctx, pending, now); err != nil {
		s.logger.WithError(err).WithField("pending_id", pending.ID).
			Error("failed to enqueue moderation item")
	}

	s.appendHistory(ctx, userID, pending.ID, req.Kind, location, now)
	s.recordReport("accepted")
	return &types.SubmitReportResult{
		Accepted:          true,
		PendingIncidentID: pending.ID,
		ThresholdProgress: int(math.Round(result.Score * 100)),
	}, nil
}

// aggregate merges the report into a matching candidate or opens a new
// one, and returns the candidate with its fresh threshold result.
func (s *ReportService) aggregate(
	ctx context.Context,
	req types.SubmitReportRequest,
	description *string,
	location types.Location,
	reporter types.Reporter,
	now time.Time,
) (*types.PendingIncident, scoring.ThresholdResult, error) {
	box := geo.BoxAround(location, types.AggregationRadiusKm)
	candidate, err := s.db.FindMatchingCandidate(ctx, req.Kind, box, now.Add(-types.AggregationWindow))
	if err != nil {
		return nil, scoring.ThresholdResult{}, fmt.Errorf("failed to match candidate: %w", err)
	}

	if candidate != nil {
		if candidate.HasReporter(reporter.UserID) {
			return nil, scoring.ThresholdResult{}, types.ErrAlreadyReported
		}
		err = s.db.AddReporter(ctx, candidate.ID, reporter)
		switch {
		case err == nil:
			candidate.Reporters = append(candidate.Reporters, reporter)
			candidate.TotalReports++
			candidate.AggregateReputation += maxInt(0, reporter.Reputation)
			result := s.scorer.Score(candidate.Reporters, candidate.ThresholdRequired)
			if err := s.db.UpdateThresholdScore(ctx, candidate.ID, result.Score); err != nil {
				return nil, scoring.ThresholdResult{}, fmt.Errorf("failed to store threshold score: %w", err)
			}
			candidate.ThresholdScore = result.Score
			return candidate, result, nil
		case errors.Is(err, types.ErrAlreadyReported):
			return nil, scoring.ThresholdResult{}, types.ErrAlreadyReported
		case errors.Is(err, types.ErrInvalidState):
			// candidate left PENDING between match and append, open a new one
		default:
			return nil, scoring.ThresholdResult{}, fmt.Errorf("failed to add reporter: %w", err)
		}
	}

	pending := types.PendingIncident{
		ID:                  uuid.New(),
		Kind:                req.Kind,
		Description:         description,
		Status:              types.PendingStatusPending,
		Location:            location,
		LineIDs:             req.LineIDs,
		DelayMinutes:        req.DelayMinutes,
		Reporters:           []types.Reporter{reporter},
		TotalReports:        1,
		AggregateReputation: maxInt(0, reporter.Reputation),
		ThresholdRequired:   scoring.AutoPublishThreshold,
		CreatedAt:           now,
		LastReportAt:        now,
		ExpiresAt:           now.Add(types.PendingTTL),
	}
	result := s.scorer.Score(pending.Reporters, pending.ThresholdRequired)
	pending.ThresholdScore = result.Score

	if err := s.db.CreatePendingIncident(ctx, pending); err != nil {
		return nil, scoring.ThresholdResult{}, fmt.Errorf("failed to create candidate: %w", err)
	}
	return &pending, result, nil
}

// inferLines guesses the affected lines from the nearest bounding stops
// when the reporter did not name any.
func (s *ReportService) inferLines(location types.Location) []string {
	seg := geo.InferSegment(location, s.network.Stops())
	if seg == nil {
		return nil
	}
	lines := s.network.LinesForStops([]string{seg.FromStop.ID, seg.ToStop.ID})
	if len(lines) > 0 {
		s.logger.WithFields(logrus.Fields{
			"from_stop":  seg.FromStop.ID,
			"to_stop":    seg.ToStop.ID,
			"confidence": seg.Confidence,
		}).Debug("inferred affected lines")
	}
	return lines
}

func (s *ReportService) enqueueModeration(ctx context.Context, pending *types.PendingIncident, now time.Time) error {
	return s.db.EnqueueModeration(ctx, types.ModeratorQueueItem{
		ID:                uuid.New(),
		PendingIncidentID: pending.ID,
		Priority:          types.PriorityForKind(pending.Kind),
		Reason:            "below auto-publish threshold",
		CreatedAt:         now,
	})
}

// appendHistory records the accepted report. A failure here must not
// reject a report that already counted toward a candidate.
func (s *ReportService) appendHistory(ctx context.Context, userID string, pendingID uuid.UUID, kind types.ReportKind, location types.Location, now time.Time) {
	entry := types.ReportEntry{
		ID:                uuid.New(),
		UserID:            userID,
		PendingIncidentID: pendingID,
		Kind:              kind,
		Location:          &location,
		CreatedAt:         now,
	}
	if err := s.db.AppendReportEntry(ctx, entry); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).
			Error("failed to append report history entry")
	}
	if s.redis != nil {
		if err := s.redis.SetLastReport(ctx, userID, now, s.cfg.Cooldown.Lookback); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).
				Warn("failed to cache last report timestamp")
		}
	}
}

// CanSubmit is the read-only precheck: same rate and cooldown logic as
// SubmitReport but no mutation anywhere, not even on violation.
func (s *ReportService) CanSubmit(ctx context.Context, userID string) (*types.CanSubmitResult, error) {
	if userID == "" {
		return nil, types.ErrUnauthenticated
	}
	user, err := s.db.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, types.ErrUnauthenticated
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	now := time.Now().UTC()

	if s.redis != nil {
		last, err := s.redis.GetLastReport(ctx, userID)
		if err != nil {
			s.logger.WithError(err).Warn("last report cache unavailable")
		} else if !last.IsZero() && now.Sub(last) < s.cfg.Cooldown.MinSpacing {
			return &types.CanSubmitResult{
				CanSubmit: false,
				Reason:    "cooldown",
			}, nil
		}
	}

	entries, err := s.db.GetReportEntries(ctx, userID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load report history: %w", err)
	}

	decision := s.limiter.Check(user.Role, entries, now)
	info := &types.RateLimitInfo{
		RemainingMinute: decision.RemainingMinute,
		RemainingHour:   decision.RemainingHour,
		RemainingDay:    decision.RemainingDay,
		RetryAfter:      decision.RetryAfter,
	}
	if !decision.Allowed {
		return &types.CanSubmitResult{
			CanSubmit:     false,
			Reason:        "rateLimited",
			RateLimitInfo: info,
		}, nil
	}

	var lastAny time.Time
	for _, e := range entries {
		if e.CreatedAt.After(lastAny) {
			lastAny = e.CreatedAt
		}
	}
	if !lastAny.IsZero() && now.Sub(lastAny) < s.cfg.Cooldown.MinSpacing {
		return &types.CanSubmitResult{
			CanSubmit:     false,
			Reason:        "cooldown",
			RateLimitInfo: info,
		}, nil
	}

	return &types.CanSubmitResult{CanSubmit: true, RateLimitInfo: info}, nil
}

func (s *ReportService) ListPendingForUser(ctx context.Context, userID string) ([]types.PendingIncident, error) {
	if userID == "" {
		return nil, types.ErrUnauthenticated
	}
	return s.db.ListPendingByReporter(ctx, userID)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
