package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/transitwatch/verifier/config"
	"github.com/transitwatch/verifier/internal/metrics"
	"github.com/transitwatch/verifier/internal/scoring"
	"github.com/transitwatch/verifier/internal/storage"
)

// trustRecomputeConcurrency bounds the per-user fan-out of one pass.
const trustRecomputeConcurrency = 8

// TrustService recomputes derived trust scores from resolved report
// outcomes. Recomputation only reads history and writes the derived
// fields, so it is safe to run concurrently with report submission.
type TrustService struct {
	db      storage.DatabaseStorage
	logger  *logrus.Logger
	calc    *scoring.TrustCalculator
	metrics *metrics.EngineMetrics
}

func NewTrustService(db storage.DatabaseStorage, cfg config.TrustConfig, em *metrics.EngineMetrics) (*TrustService, error) {
	if db == nil {
		return nil, fmt.Errorf("database storage cannot be nil")
	}
	return &TrustService{
		db:      db,
		logger:  logrus.WithField("service", "trust").Logger,
		calc:    scoring.NewTrustCalculator(cfg),
		metrics: em,
	}, nil
}

// RecomputeUser recalculates one user's trust score. Idempotent on
// unchanged inputs.
func (s *TrustService) RecomputeUser(ctx context.Context, userID string) error {
	user, err := s.db.FindUserByID(ctx, userID)
	if err != nil {
		return err
	}
	stats, err := s.db.GetUserReportStats(ctx, userID)
	if err != nil {
		return err
	}
	score, breakdown := s.calc.Compute(user.Reputation, stats, time.Now().UTC())
	return s.db.UpdateTrustScore(ctx, userID, score, breakdown)
}

// RecomputeAll runs one full pass over all users with bounded fan-out and
// returns how many scores were written. Per-user failures are logged and
// do not abort the pass.
func (s *TrustService) RecomputeAll(ctx context.Context) (int, error) {
	start := time.Now()
	ids, err := s.db.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}

	var updated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(trustRecomputeConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := s.RecomputeUser(gctx, id); err != nil {
				s.logger.WithError(err).WithField("user_id", id).
					Error("failed to recompute trust score")
				return nil
			}
			updated.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(updated.Load()), err
	}

	count := int(updated.Load())
	if s.metrics != nil {
		s.metrics.RecordTrustRecompute(time.Since(start).Seconds(), count)
	}
	s.logger.WithFields(logrus.Fields{
		"users":    len(ids),
		"updated":  count,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("trust recompute pass finished")
	return count, nil
}

// TrustWorker schedules recompute passes on a fixed interval. A
// try-acquire guard skips a tick while the previous pass is still
// running; Stop lets an in-flight pass finish before returning.
type TrustWorker struct {
	svc      *TrustService
	interval time.Duration
	logger   *logrus.Logger
	inFlight atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewTrustWorker(svc *TrustService, interval time.Duration) *TrustWorker {
	return &TrustWorker{
		svc:      svc,
		interval: interval,
		logger:   logrus.WithField("worker", "trust").Logger,
		done:     make(chan struct{}),
	}
}

func (w *TrustWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-w.done:
				return
			case <-ticker.C:
				w.tick(ctx)
			}
		}
	}()
}

func (w *TrustWorker) tick(ctx context.Context) {
	if !w.inFlight.CompareAndSwap(false, true) {
		w.logger.Warn("previous trust recompute pass still running, skipping tick")
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.inFlight.Store(false)
		if _, err := w.svc.RecomputeAll(ctx); err != nil {
			w.logger.WithError(err).Error("trust recompute pass failed")
		}
	}()
}

// Stop halts scheduling and waits for any in-flight pass.
func (w *TrustWorker) Stop() {
	close(w.done)
	w.wg.Wait()
}
