package guard

import (
	"time"

	"github.com/transitwatch/verifier/config"
	"github.com/transitwatch/verifier/internal/geo"
	"github.com/transitwatch/verifier/internal/types"
)

const (
	CooldownAny          = "any"
	CooldownSameKind     = "sameKind"
	CooldownSameLocation = "sameLocation"
)

// CooldownDecision names the first violated check and the remaining wait.
type CooldownDecision struct {
	OnCooldown   bool
	CooldownType string
	Remaining    time.Duration
}

type CooldownGuard struct {
	cfg config.CooldownConfig
}

func NewCooldownGuard(cfg config.CooldownConfig) *CooldownGuard {
	return &CooldownGuard{cfg: cfg}
}

// Check runs the three stacked spacing checks in order: any report, same
// kind, same location. The first violation determines the result. Only
// entries within the lookback window are considered.
func (g *CooldownGuard) Check(entries []types.ReportEntry, kind types.ReportKind, location types.Location, now time.Time) CooldownDecision {
	cutoff := now.Add(-g.cfg.Lookback)

	var lastAny, lastSameKind, lastSameLocation time.Time
	for _, e := range entries {
		if !e.CreatedAt.After(cutoff) {
			continue
		}
		if e.CreatedAt.After(lastAny) {
			lastAny = e.CreatedAt
		}
		if e.Kind == kind && e.CreatedAt.After(lastSameKind) {
			lastSameKind = e.CreatedAt
		}
		if e.Location != nil &&
			geo.Distance(*e.Location, location) <= g.cfg.SameLocationRadiusM &&
			e.CreatedAt.After(lastSameLocation) {
			lastSameLocation = e.CreatedAt
		}
	}

	checks := []struct {
		name    string
		last    time.Time
		spacing time.Duration
	}{
		{CooldownAny, lastAny, g.cfg.MinSpacing},
		{CooldownSameKind, lastSameKind, g.cfg.SameKindSpacing},
		{CooldownSameLocation, lastSameLocation, g.cfg.SameLocationSpacing},
	}

	for _, c := range checks {
		if c.last.IsZero() {
			continue
		}
		elapsed := now.Sub(c.last)
		if elapsed < c.spacing {
			return CooldownDecision{
				OnCooldown:   true,
				CooldownType: c.name,
				Remaining:    c.spacing - elapsed,
			}
		}
	}

	return CooldownDecision{}
}
