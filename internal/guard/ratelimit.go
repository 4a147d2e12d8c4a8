// Package guard holds the pure admission checks run before a report enters
// the aggregation pipeline: sliding-window rate limiting and short-horizon
// cooldowns. Both evaluate an identity's report history without mutating
// anything; recording happens only after the full pipeline accepts.
package guard

import (
	"time"

	"github.com/transitwatch/verifier/config"
	"github.com/transitwatch/verifier/internal/types"
)

const (
	WindowMinute = "minute"
	WindowHour   = "hour"
	WindowDay    = "day"
)

// RateLimitDecision is the outcome of a sliding-window check. When not
// allowed, RetryAfter is the time until the oldest report in the exceeded
// window ages out.
type RateLimitDecision struct {
	Allowed         bool
	Window          string
	RetryAfter      time.Duration
	RemainingMinute int
	RemainingHour   int
	RemainingDay    int
}

type RateLimiter struct {
	cfg config.RateLimitConfig
}

func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{cfg: cfg}
}

func (l *RateLimiter) tierFor(role types.UserRole) config.RateLimitTier {
	if role.CanModerate() {
		return l.cfg.Moderator
	}
	return l.cfg.User
}

// Check evaluates the identity's trailing windows against its role tier.
// entries must cover at least the trailing day.
func (l *RateLimiter) Check(role types.UserRole, entries []types.ReportEntry, now time.Time) RateLimitDecision {
	tier := l.tierFor(role)

	windows := []struct {
		name    string
		span    time.Duration
		ceiling int
	}{
		{WindowMinute, time.Minute, tier.PerMinute},
		{WindowHour, time.Hour, tier.PerHour},
		{WindowDay, 24 * time.Hour, tier.PerDay},
	}

	decision := RateLimitDecision{Allowed: true}
	remaining := [3]int{}

	for i, w := range windows {
		count, oldest := countInWindow(entries, now, w.span)
		remaining[i] = w.ceiling - count
		if remaining[i] < 0 {
			remaining[i] = 0
		}

		if count >= w.ceiling && decision.Allowed {
			decision.Allowed = false
			decision.Window = w.name
			decision.RetryAfter = oldest.Add(w.span).Sub(now)
			if decision.RetryAfter < 0 {
				decision.RetryAfter = 0
			}
		}
	}

	decision.RemainingMinute = remaining[0]
	decision.RemainingHour = remaining[1]
	decision.RemainingDay = remaining[2]
	return decision
}

// countInWindow returns how many entries fall inside the trailing window
// and the creation time of the oldest one among them.
func countInWindow(entries []types.ReportEntry, now time.Time, span time.Duration) (int, time.Time) {
	cutoff := now.Add(-span)
	count := 0
	var oldest time.Time
	for _, e := range entries {
		if e.CreatedAt.After(cutoff) {
			count++
			if oldest.IsZero() || e.CreatedAt.Before(oldest) {
				oldest = e.CreatedAt
			}
		}
	}
	return count, oldest
}
