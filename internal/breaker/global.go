// Package breaker implements the three-state (closed/open/half-open)
// circuit breakers, one global and one per module. Both
// keep a sony/gobreaker.TwoStepCircuitBreaker as an in-process fast path so
// a hot scheduler loop doesn't hit Postgres on every tick, reconciled
// against an authoritative row so state survives a restart and stays
// visible cluster-wide through the admin surface.
package breaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
	"github.com/sony/gobreaker"
)

const globalCacheKey = "wp4odoo:breaker:global:phase"

// Global is the single system-wide breaker: it trips on a
// whole-iteration failure ratio (domain.BatchOutcome.IsFailed) rather than
// one call at a time, matching the batch-oriented nature of the sync
// engine. The Postgres row is authoritative; cb and the Redis cache only
// avoid a round trip on the common path.
type Global struct {
	store    repository.BreakerStore
	cache    rediscache.Cache
	logger   *slog.Logger
	cb       *gobreaker.TwoStepCircuitBreaker
	settings func() domain.Settings
}

func NewGlobal(store repository.BreakerStore, cache rediscache.Cache, settingsFn func() domain.Settings, logger *slog.Logger) *Global {
	g := &Global{store: store, cache: cache, settings: settingsFn, logger: logger.With("component", "global_breaker")}

	g.cb = gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        "global",
		MaxRequests: 1, // single probe admitted while half-open
		Interval:    time.Minute,
		Timeout:     time.Duration(settingsFn().GlobalBreakerRecoverySec) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(settingsFn().GlobalBreakerFailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("global breaker state change", "from", from.String(), "to", to.String())
		},
	})
	return g
}

// Allow asks the in-process breaker whether a batch may run right now.
// The returned done func must be called exactly once with the batch's
// outcome; RecordBatch does the authoritative Postgres bookkeeping on top.
func (g *Global) Allow() (done func(success bool), allowed bool) {
	d, err := g.cb.Allow()
	if err != nil {
		return func(bool) {}, false
	}
	return d, true
}

// RecordBatch persists the breaker's explicit state machine: a failed batch
// increments the authoritative failure counter and opens the breaker once
// the threshold is hit; a batch driven while half-open closes the breaker
// on success or reopens it on failure.
func (g *Global) RecordBatch(ctx context.Context, outcome domain.BatchOutcome, done func(success bool)) error {
	failed := outcome.IsFailed()
	done(!failed)

	state, err := g.store.GetGlobal(ctx)
	if err != nil {
		return err
	}
	settings := g.settings()

	switch {
	case state.OpenedAt != nil && state.ProbeHeld:
		if failed {
			now := time.Now()
			state.OpenedAt = &now
		} else {
			state.Failures = 0
			state.OpenedAt = nil
		}
		state.ProbeHeld = false
	case failed:
		state.Failures++
		if state.Failures >= settings.GlobalBreakerFailureThreshold && state.OpenedAt == nil {
			now := time.Now()
			state.OpenedAt = &now
		}
	default:
		state.Failures = 0
	}
	state.UpdatedAt = time.Now()

	if err := g.store.SaveGlobal(ctx, state); err != nil {
		return err
	}
	_ = g.cache.Set(ctx, globalCacheKey, string(phaseOf(state, settings)), 30*time.Second)
	return nil
}

// Phase reports the current breaker phase, applying the hard auto-heal TTL
// and marking the transition into
// half-open so the next caller becomes the single admitted probe.
func (g *Global) Phase(ctx context.Context) (domain.BreakerPhase, error) {
	if cached, ok, _ := g.cache.Get(ctx, globalCacheKey); ok {
		return domain.BreakerPhase(cached), nil
	}

	state, err := g.store.GetGlobal(ctx)
	if err != nil {
		return domain.PhaseClosed, err
	}
	settings := g.settings()
	phase := phaseOf(state, settings)

	if phase == domain.PhaseHalfOpen && !state.ProbeHeld {
		state.ProbeHeld = true
		if err := g.store.SaveGlobal(ctx, state); err != nil {
			return phase, err
		}
	}
	_ = g.cache.Set(ctx, globalCacheKey, string(phase), 5*time.Second)
	return phase, nil
}

func phaseOf(state domain.GlobalBreakerState, settings domain.Settings) domain.BreakerPhase {
	if state.OpenedAt == nil {
		return domain.PhaseClosed
	}
	if time.Since(*state.OpenedAt) > domain.GlobalBreakerTTL {
		return domain.PhaseClosed
	}
	if time.Since(*state.OpenedAt) > time.Duration(settings.GlobalBreakerRecoverySec)*time.Second {
		return domain.PhaseHalfOpen
	}
	return domain.PhaseOpen
}

// Reset clears the global breaker's cached phase and persisted row. No CLI
// verb or admin HTTP route calls it.
func (g *Global) Reset(ctx context.Context) error {
	_ = g.cache.Del(ctx, globalCacheKey)
	return g.store.ResetGlobal(ctx)
}
