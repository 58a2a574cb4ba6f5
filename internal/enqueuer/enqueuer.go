// Package enqueuer is the producer-facing entry point into the queue:
// it debounces rapid-fire local writes into a single job and
// watches queue depth for operator alerting.
package enqueuer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/correlation"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/email"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
)

const (
	warningDepth     = 1000
	criticalDepth    = 5000
	depthCooldown    = 5 * time.Minute
	depthCacheKeyFmt = "wp4odoo:enqueuer:depth_alert:%s"
)

// Enqueuer is the debounced producer seam between a module (which observes
// local content changes) and the QueueStore.
type Enqueuer struct {
	store       repository.QueueStore
	cache       rediscache.Cache
	sender      email.Sender
	alertTo     string
	debounceSec func() int
	logger      *slog.Logger
}

func New(store repository.QueueStore, cache rediscache.Cache, sender email.Sender, alertTo string, debounceSec func() int, logger *slog.Logger) *Enqueuer {
	return &Enqueuer{
		store: store, cache: cache, sender: sender, alertTo: alertTo,
		debounceSec: debounceSec, logger: logger.With("component", "enqueuer"),
	}
}

// EnqueuePush schedules a local->remote job, debounced by debounceSec so a
// burst of edits to the same record coalesces into one sync.
func (e *Enqueuer) EnqueuePush(ctx context.Context, moduleID, entityType string, localID uint64, action domain.Action, payload []byte, priority uint8) (*domain.Job, error) {
	scheduledAt := time.Now().Add(time.Duration(e.debounceSec()) * time.Second)
	spec := domain.JobSpec{
		Module: moduleID, Direction: domain.LocalToRemote, EntityType: entityType,
		Action: action, LocalID: localID, Payload: payload,
		Priority: domain.ClampPriority(priority), ScheduledAt: &scheduledAt,
	}
	return e.enqueue(ctx, spec)
}

// EnqueuePull schedules a remote->local job (typically from a webhook or
// reconciler finding), not debounced since remote events are already
// discrete.
func (e *Enqueuer) EnqueuePull(ctx context.Context, moduleID, entityType string, remoteID uint64, action domain.Action, priority uint8) (*domain.Job, error) {
	spec := domain.JobSpec{
		Module: moduleID, Direction: domain.RemoteToLocal, EntityType: entityType,
		Action: action, RemoteID: remoteID, Priority: domain.ClampPriority(priority),
	}
	return e.enqueue(ctx, spec)
}

func (e *Enqueuer) enqueue(ctx context.Context, spec domain.JobSpec) (*domain.Job, error) {
	if len(spec.Payload) > domain.MaxPayloadBytes {
		return nil, domain.ErrPayloadTooLarge
	}

	correlationID := correlation.FromContext(ctx)
	if correlationID == "" {
		correlationID = correlation.New()
	}

	job, inserted, err := e.store.Enqueue(ctx, spec, correlationID)
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	if inserted {
		e.checkDepth(ctx, spec.Module)
	}
	return job, nil
}

// checkDepth alerts when a module's pending backlog crosses a threshold,
// gated by a cluster-wide cooldown so every worker process doesn't send its
// own copy of the same alert.
func (e *Enqueuer) checkDepth(ctx context.Context, moduleID string) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "queue depth check failed", "error", err)
		return
	}
	depth := stats.PerModule[moduleID]

	var severity string
	switch {
	case depth >= criticalDepth:
		severity = "critical"
	case depth >= warningDepth:
		severity = "warning"
	default:
		return
	}

	cacheKey := fmt.Sprintf(depthCacheKeyFmt, moduleID)
	won, err := e.cache.SetNX(ctx, cacheKey, severity, depthCooldown)
	if err != nil {
		e.logger.ErrorContext(ctx, "depth alert cooldown check failed", "module", moduleID, "error", err)
		return
	}
	if !won {
		return
	}

	subject := fmt.Sprintf("wp4odoo sync: %s queue depth %s", moduleID, severity)
	body := fmt.Sprintf("Module %q has %d pending jobs (%s threshold).", moduleID, depth, severity)
	if err := e.sender.Send(ctx, e.alertTo, subject, body); err != nil {
		e.logger.ErrorContext(ctx, "send queue depth alert failed", "module", moduleID, "error", err)
	}
}
