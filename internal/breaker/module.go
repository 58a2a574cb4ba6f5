package breaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
	"github.com/sony/gobreaker"
)

// Module is the per-module breaker: each module gets its own
// failure counter and independent open/half-open/closed phase, so one
// misbehaving module's RPC failures don't stop sync traffic for the rest.
type Module struct {
	store    repository.BreakerStore
	cache    rediscache.Cache
	logger   *slog.Logger
	settings func() domain.Settings

	mu  sync.Mutex
	cbs map[string]*gobreaker.TwoStepCircuitBreaker
}

func NewModule(store repository.BreakerStore, cache rediscache.Cache, settingsFn func() domain.Settings, logger *slog.Logger) *Module {
	return &Module{
		store:    store,
		cache:    cache,
		settings: settingsFn,
		logger:   logger.With("component", "module_breaker"),
		cbs:      make(map[string]*gobreaker.TwoStepCircuitBreaker),
	}
}

func (m *Module) cbFor(module string) *gobreaker.TwoStepCircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cb, ok := m.cbs[module]; ok {
		return cb
	}
	settingsFn := m.settings
	logger := m.logger
	cb := gobreaker.NewTwoStepCircuitBreaker(gobreaker.Settings{
		Name:        module,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Duration(settingsFn().ModuleBreakerRecoverySec) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(settingsFn().ModuleBreakerFailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("module breaker state change", "module", name, "from", from.String(), "to", to.String())
		},
	})
	m.cbs[module] = cb
	return cb
}

func cacheKey(module string) string {
	return fmt.Sprintf("wp4odoo:breaker:module:%s:phase", module)
}

func (m *Module) Allow(module string) (done func(success bool), allowed bool) {
	d, err := m.cbFor(module).Allow()
	if err != nil {
		return func(bool) {}, false
	}
	return d, true
}

func (m *Module) RecordBatch(ctx context.Context, module string, outcome domain.BatchOutcome, done func(success bool)) error {
	failed := outcome.IsFailed()
	done(!failed)

	state, found, err := m.store.GetModule(ctx, module)
	if err != nil {
		return err
	}
	if !found {
		state = domain.ModuleBreakerState{Module: module}
	}
	settings := m.settings()

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
		if state.Failures >= settings.ModuleBreakerFailureThreshold && state.OpenedAt == nil {
			now := time.Now()
			state.OpenedAt = &now
		}
	default:
		state.Failures = 0
	}
	state.UpdatedAt = time.Now()

	if err := m.store.SaveModule(ctx, state); err != nil {
		return err
	}
	_ = m.cache.Set(ctx, cacheKey(module), string(modulePhaseOf(state, settings)), 30*time.Second)
	return nil
}

func (m *Module) Phase(ctx context.Context, module string) (domain.BreakerPhase, error) {
	if cached, ok, _ := m.cache.Get(ctx, cacheKey(module)); ok {
		return domain.BreakerPhase(cached), nil
	}

	state, found, err := m.store.GetModule(ctx, module)
	if err != nil {
		return domain.PhaseClosed, err
	}
	if !found {
		return domain.PhaseClosed, nil
	}
	settings := m.settings()
	phase := modulePhaseOf(state, settings)

	if phase == domain.PhaseHalfOpen && !state.ProbeHeld {
		state.ProbeHeld = true
		if err := m.store.SaveModule(ctx, state); err != nil {
			return phase, err
		}
	}
	_ = m.cache.Set(ctx, cacheKey(module), string(phase), 5*time.Second)
	return phase, nil
}

func modulePhaseOf(state domain.ModuleBreakerState, settings domain.Settings) domain.BreakerPhase {
	if state.OpenedAt == nil {
		return domain.PhaseClosed
	}
	if time.Since(*state.OpenedAt) > domain.ModuleBreakerTTL {
		return domain.PhaseClosed
	}
	if time.Since(*state.OpenedAt) > time.Duration(settings.ModuleBreakerRecoverySec)*time.Second {
		return domain.PhaseHalfOpen
	}
	return domain.PhaseOpen
}

// Reset clears one module's breaker. No CLI verb or admin HTTP route calls
// it.
func (m *Module) Reset(ctx context.Context, module string) error {
	_ = m.cache.Del(ctx, cacheKey(module))
	return m.store.ResetModule(ctx, module)
}

// ListOpen backs the "status" CLI verb and admin surface reporting which modules are
// currently tripped.
func (m *Module) ListOpen(ctx context.Context) ([]domain.ModuleBreakerState, error) {
	return m.store.ListOpenModules(ctx)
}
