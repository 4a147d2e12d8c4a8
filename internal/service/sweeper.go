package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/transitwatch/verifier/internal/storage"
	"github.com/transitwatch/verifier/internal/types"
)

// SweepService retires candidates past their TTL and trims report history
// past the retention window.
type SweepService struct {
	db     storage.DatabaseStorage
	logger *logrus.Logger
}

func NewSweepService(db storage.DatabaseStorage) (*SweepService, error) {
	if db == nil {
		return nil, fmt.Errorf("database storage cannot be nil")
	}
	return &SweepService{
		db:     db,
		logger: logrus.WithField("service", "sweep").Logger,
	}, nil
}

// SweepExpired rejects every pending candidate whose expiresAt has
// passed and drops its queue item. Candidates that changed status since
// listing are skipped.
func (s *SweepService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.db.ListExpiredPending(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired candidates: %w", err)
	}

	swept := 0
	for _, pending := range expired {
		err := s.db.MarkRejected(ctx, pending.ID, types.ReportedBySystem, "expired")
		if err != nil {
			if errors.Is(err, types.ErrInvalidState) {
				continue
			}
			s.logger.WithError(err).WithField("pending_id", pending.ID).
				Error("failed to expire candidate")
			continue
		}
		if err := s.db.RemoveModerationItem(ctx, pending.ID); err != nil {
			s.logger.WithError(err).WithField("pending_id", pending.ID).
				Error("failed to remove moderation item for expired candidate")
		}
		swept++
	}

	if swept > 0 {
		s.logger.WithField("count", swept).Info("expired candidates swept")
	}
	return swept, nil
}

// TrimHistories deletes report entries older than the retention window.
func (s *SweepService) TrimHistories(ctx context.Context, now time.Time) (int64, error) {
	trimmed, err := s.db.TrimReportEntries(ctx, now.Add(-types.ReportRetention))
	if err != nil {
		return 0, err
	}
	if trimmed > 0 {
		s.logger.WithField("count", trimmed).Info("report history entries trimmed")
	}
	return trimmed, nil
}

// SweepWorker runs the expiry sweep and history trim on a fixed interval.
type SweepWorker struct {
	svc      *SweepService
	interval time.Duration
	logger   *logrus.Logger
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewSweepWorker(svc *SweepService, interval time.Duration) *SweepWorker {
	return &SweepWorker{
		svc:      svc,
		interval: interval,
		logger:   logrus.WithField("worker", "sweep").Logger,
		done:     make(chan struct{}),
	}
}

func (w *SweepWorker) Start(ctx context.Context) {
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
				now := time.Now().UTC()
				if _, err := w.svc.SweepExpired(ctx, now); err != nil {
					w.logger.WithError(err).Error("expiry sweep failed")
				}
				if _, err := w.svc.TrimHistories(ctx, now); err != nil {
					w.logger.WithError(err).Error("history trim failed")
				}
			}
		}
	}()
}

func (w *SweepWorker) Stop() {
	close(w.done)
	w.wg.Wait()
}
