package reconciler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Target is one (module, entityType) pair the periodic sweep reconciles.
type Target struct {
	Module     string
	EntityType string
}

// Sweeper runs Reconcile for every configured Target on a cron schedule —
// the same ticker-plus-cron.ParseStandard shape as this codebase's other
// periodic driver, adapted to skip any runs missed while the process was
// down instead of bursting through a backlog of them.
type Sweeper struct {
	reconciler *Reconciler
	targets    []Target
	cronExpr   string
	logger     *slog.Logger

	next map[Target]time.Time
}

func NewSweeper(reconciler *Reconciler, targets []Target, cronExpr string, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		reconciler: reconciler,
		targets:    targets,
		cronExpr:   cronExpr,
		logger:     logger.With("component", "reconciler_sweeper"),
		next:       make(map[Target]time.Time),
	}
}

func (s *Sweeper) Start(ctx context.Context) {
	sched, err := cron.ParseStandard(s.cronExpr)
	if err != nil {
		s.logger.Error("invalid reconcile cron expression, sweeper disabled", "cron_expr", s.cronExpr, "error", err)
		return
	}

	now := time.Now()
	for _, t := range s.targets {
		s.next[t] = sched.Next(now)
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	s.logger.Info("reconciler sweeper started", "cron_expr", s.cronExpr, "targets", len(s.targets))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciler sweeper shut down")
			return
		case <-ticker.C:
			s.tick(ctx, sched)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context, sched cron.Schedule) {
	now := time.Now()
	for _, t := range s.targets {
		due := s.next[t]
		if due.After(now) {
			continue
		}

		next := sched.Next(due)
		for next.Before(now) {
			next = sched.Next(next) // skip missed runs rather than bursting through them
		}
		s.next[t] = next

		if _, err := s.reconciler.Reconcile(ctx, t.Module, t.EntityType, false); err != nil {
			s.logger.Error("scheduled reconcile failed", "module", t.Module, "entity_type", t.EntityType, "error", err)
		}
	}
}
