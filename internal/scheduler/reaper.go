package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/metrics"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
)

// Reaper recovers jobs left in "processing" by a worker that crashed or was
// killed mid-drive — it never saw Complete/Fail, so the lease just goes
// stale.
type Reaper struct {
	store             repository.QueueStore
	logger            *slog.Logger
	interval          time.Duration
	staleLeaseTimeout func() time.Duration
}

func NewReaper(store repository.QueueStore, logger *slog.Logger, interval time.Duration, staleLeaseTimeout func() time.Duration) *Reaper {
	return &Reaper{
		store:             store,
		logger:            logger.With("component", "reaper"),
		interval:          interval,
		staleLeaseTimeout: staleLeaseTimeout,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper shut down")
			return
		case <-ticker.C:
			r.reap(ctx)
		}
	}
}

func (r *Reaper) reap(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.ReaperCycleDuration.Observe(time.Since(start).Seconds()) }()

	staleCutoff := time.Now().Add(-r.staleLeaseTimeout())

	recovered, err := r.store.RecoverStale(ctx, staleCutoff, 100)
	if err != nil {
		r.logger.Error("reaper: recover stale jobs", "error", err)
		return
	}
	if recovered > 0 {
		r.logger.Info("reaper: recovered stale jobs", "count", recovered)
		metrics.ReaperRescuedTotal.WithLabelValues("recovered").Add(float64(recovered))
	}
}
