package types

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy shared between storage, services, and the API layer.
var (
	ErrUnauthenticated = errors.New("no identity")
	ErrForbidden       = errors.New("insufficient role")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrOnCooldown      = errors.New("cooldown active")
	ErrAlreadyReported = errors.New("identity already reported this incident")
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("candidate not in expected status")
	ErrStoreConflict   = errors.New("lost concurrent conditional update")
)

// RateLimitError carries the retry-after hint for a tier violation.
type RateLimitError struct {
	Window     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s window, retry after %s", e.Window, e.RetryAfter.Round(time.Second))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// CooldownError carries which stacked check tripped and the remaining wait.
type CooldownError struct {
	CooldownType string
	Remaining    time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown %q active, %s remaining", e.CooldownType, e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return ErrOnCooldown }
