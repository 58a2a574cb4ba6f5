// Package settings is the live-tunable configuration accessor every other
// component reads through — a thin cache in front of repository.SettingsRepo
// so a hot scheduler loop isn't a database round trip per tick.
package settings

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
)

const refreshInterval = 10 * time.Second

// Accessor caches domain.Settings in memory, refreshing from SettingsRepo on
// a short interval so an operator's "queue stats"-adjacent tuning change
// takes effect within seconds without every caller hitting Postgres.
type Accessor struct {
	repo   repository.SettingsRepo
	logger *slog.Logger

	mu       sync.RWMutex
	current  domain.Settings
	lastLoad time.Time
}

// New loads the initial settings synchronously so callers never observe a
// zero-value Settings.
func New(ctx context.Context, repo repository.SettingsRepo, logger *slog.Logger) (*Accessor, error) {
	a := &Accessor{repo: repo, logger: logger.With("component", "settings_accessor")}
	s, err := repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.current = s
	a.lastLoad = time.Now()
	a.mu.Unlock()
	return a, nil
}

// Get returns the cached settings, the shape most callers (breakers,
// scheduler, notifier) inject as a `func() domain.Settings` closure.
func (a *Accessor) Get() domain.Settings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.current
}

// Refresh reloads from the SettingsRepo if the cache is older than
// refreshInterval; safe to call on every scheduler tick.
func (a *Accessor) Refresh(ctx context.Context) {
	a.mu.RLock()
	stale := time.Since(a.lastLoad) >= refreshInterval
	a.mu.RUnlock()
	if !stale {
		return
	}

	s, err := a.repo.Get(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "settings refresh failed, keeping cached values", "error", err)
		return
	}
	a.mu.Lock()
	a.current = s
	a.lastLoad = time.Now()
	a.mu.Unlock()
}

// Set writes one tunable through to the SettingsRepo and refreshes the
// cache immediately.
func (a *Accessor) Set(ctx context.Context, key, value string) error {
	if err := a.repo.Set(ctx, key, value); err != nil {
		return err
	}
	s, err := a.repo.Get(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.current = s
	a.lastLoad = time.Now()
	a.mu.Unlock()
	return nil
}

// StartAutoRefresh runs Refresh on a ticker until ctx is done — call this
// once from the worker daemon so the cache doesn't depend on scheduler
// ticks alone to stay warm.
func (a *Accessor) StartAutoRefresh(ctx context.Context) {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Refresh(ctx)
		}
	}
}
