// Package scheduler drives the queue: one run claims and processes pending
// jobs for a module (or every module) within a bounded wall-clock budget
// and iteration cap, honoring both breakers and the per-module rate limiter.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/batch"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/breaker"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/postgres"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/metrics"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/moduleregistry"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/notifier"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/orchestrator"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/ratelimit"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/retry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shirou/gopsutil/v4/mem"
)

// Report is what one Run call returns.
type Report struct {
	Module           string
	Iterations       int
	Processed        int
	Successes        int
	Failures         int
	SkippedMemoryCap bool
}

type Scheduler struct {
	blogID    int
	pool      *pgxpool.Pool
	store     repository.QueueStore
	attempts  repository.AttemptStore
	orch      *orchestrator.Orchestrator
	batchProc *batch.Processor
	registry  *moduleregistry.Registry
	global    *breaker.Global
	module    *breaker.Module
	limiter   ratelimit.Limiter
	notify    *notifier.FailureNotifier
	settings  func() domain.Settings
	workerID  string
	logger    *slog.Logger

	reapMu   sync.Mutex
	lastReap time.Time
}

func New(
	blogID int,
	pool *pgxpool.Pool,
	store repository.QueueStore,
	attempts repository.AttemptStore,
	orch *orchestrator.Orchestrator,
	batchProc *batch.Processor,
	registry *moduleregistry.Registry,
	global *breaker.Global,
	moduleBreaker *breaker.Module,
	limiter ratelimit.Limiter,
	notify *notifier.FailureNotifier,
	settings func() domain.Settings,
	workerID string,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		blogID: blogID, pool: pool, store: store, attempts: attempts,
		orch: orch, batchProc: batchProc, registry: registry,
		global: global, module: moduleBreaker, limiter: limiter, notify: notify,
		settings: settings, workerID: workerID,
		logger: logger.With("component", "scheduler"),
	}
}

// Run drives one scheduling pass for moduleID ("" = every registered
// module), claiming and processing jobs until the wall-clock budget or
// iteration cap is hit.
func (s *Scheduler) Run(ctx context.Context, moduleID string) (Report, error) {
	report := Report{Module: moduleID}
	settings := s.settings()

	if moduleID != "" {
		if phase, err := s.module.Phase(ctx, moduleID); err == nil && phase == domain.PhaseOpen {
			s.logger.DebugContext(ctx, "module breaker open, skipping run", "module", moduleID)
			return report, nil
		}
	} else if phase, err := s.global.Phase(ctx); err == nil && phase == domain.PhaseOpen {
		s.logger.DebugContext(ctx, "global breaker open, skipping run", "module", moduleID)
		return report, nil
	}

	lockName := s.lockName(moduleID)
	lock, acquired, err := postgres.TryAcquireAdvisoryLock(ctx, s.pool, lockName)
	if err != nil {
		return report, fmt.Errorf("acquire scheduler lock: %w", err)
	}
	if !acquired {
		s.logger.DebugContext(ctx, "scheduler lock held elsewhere, skipping", "lock", lockName)
		return report, nil
	}
	defer func() { _ = lock.Release(ctx) }()

	if used, ok := s.memoryUsedPercent(); ok && used >= float64(settings.MemoryCapPercent) {
		s.logger.WarnContext(ctx, "memory cap reached, skipping run", "used_percent", used, "cap", settings.MemoryCapPercent)
		report.SkippedMemoryCap = true
		return report, nil
	}

	s.maybeReap(ctx, settings)

	s.orch.ResetBatchCache()
	budget := time.Duration(settings.SchedulerBudgetSec) * time.Second
	deadline := time.Now().Add(budget)

	for report.Iterations < settings.SchedulerIterationCap && time.Now().Before(deadline) {
		report.Iterations++
		n, err := s.iterate(ctx, moduleID, settings, &report)
		if err != nil {
			s.logger.ErrorContext(ctx, "scheduler iteration failed", "error", err)
			break
		}
		if n == 0 {
			break // queue drained for this scope
		}
	}

	outcome := domain.BatchOutcome{Successes: report.Successes, Failures: report.Failures}
	s.recordOutcome(ctx, moduleID, outcome)

	return report, nil
}

func (s *Scheduler) iterate(ctx context.Context, moduleID string, settings domain.Settings, report *Report) (int, error) {
	if moduleID != "" {
		if allowed := s.limiter.Allow(moduleID); !allowed {
			return 0, nil
		}
	}

	jobs, err := s.store.Claim(ctx, moduleID, s.workerID, settings.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("claim jobs: %w", err)
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	byModule := make(map[string][]*domain.Job)
	for _, j := range jobs {
		byModule[j.Module] = append(byModule[j.Module], j)
	}

	for mod, modJobs := range byModule {
		if _, enabled := s.registry.Resolve(mod); !enabled {
			s.logger.DebugContext(ctx, "module disabled, releasing claimed jobs back to pending", "module", mod)
			for _, j := range modJobs {
				_ = s.store.Reschedule(ctx, j.ID, "module disabled", time.Now().Add(time.Minute))
			}
			continue
		}
		if phase, err := s.module.Phase(ctx, mod); err == nil && phase == domain.PhaseOpen {
			s.logger.DebugContext(ctx, "module breaker open mid-run, releasing claimed jobs back to pending", "module", mod)
			for _, j := range modJobs {
				_ = s.store.Reschedule(ctx, j.ID, "module breaker open", time.Now())
			}
			continue
		}

		batchOut := s.batchProc.Process(ctx, modJobs)
		report.Processed += batchOut.Processed
		report.Successes += batchOut.Successes
		report.Failures += batchOut.Failures

		for _, j := range modJobs {
			if batchOut.Handled[j.ID] {
				continue
			}
			if !s.limiter.Allow(mod) {
				_ = s.store.Reschedule(ctx, j.ID, "rate limited", time.Now().Add(s.limiter.Wait(mod)))
				continue
			}
			s.driveOne(ctx, j, report)
		}

		s.orch.FlushPullTranslations(ctx, mod)
	}

	return len(jobs), nil
}

func (s *Scheduler) driveOne(ctx context.Context, j *domain.Job, report *Report) {
	// Claim already incremented j.Attempts to this dispatch's attempt number,
	// so this try is attempt j.Attempts, not j.Attempts+1.
	start := time.Now()
	attempt, _ := s.attempts.CreateAttempt(ctx, &domain.JobAttempt{JobID: j.ID, AttemptNum: j.Attempts, WorkerID: s.workerID, StartedAt: start})

	var result domain.Result
	if j.Direction == domain.RemoteToLocal {
		result = s.orch.PullFromRemote(ctx, j)
	} else {
		result = s.orch.PushToRemote(ctx, j)
	}
	duration := time.Since(start)
	metrics.JobDriveDuration.WithLabelValues(j.Module, outcomeLabel(result)).Observe(duration.Seconds())

	report.Processed++
	if result.OK {
		report.Successes++
		metrics.JobsCompletedTotal.WithLabelValues(j.Module, "success").Inc()
		if err := s.store.Complete(ctx, j.ID); err != nil {
			s.logger.ErrorContext(ctx, "complete job", "job_id", j.ID, "error", err)
		}
		if attempt != nil {
			_ = s.attempts.CompleteAttempt(ctx, attempt.ID, "", result.CreatedRemoteID, nil, duration.Milliseconds())
		}
		return
	}

	report.Failures++
	metrics.JobsCompletedTotal.WithLabelValues(j.Module, "failure").Inc()
	msg := result.Message
	if attempt != nil {
		_ = s.attempts.CompleteAttempt(ctx, attempt.ID, result.Kind, result.CreatedRemoteID, &msg, duration.Milliseconds())
	}
	if result.Kind == domain.Permanent || j.Attempts >= j.MaxAttempts {
		if err := s.store.Fail(ctx, j.ID, msg); err != nil {
			s.logger.ErrorContext(ctx, "fail job", "job_id", j.ID, "error", err)
		}
		return
	}
	retryAt := time.Now().Add(retry.NextDelay(j.Attempts - 1))
	if err := s.store.Reschedule(ctx, j.ID, msg, retryAt); err != nil {
		s.logger.ErrorContext(ctx, "reschedule job", "job_id", j.ID, "error", err)
	}
}

func (s *Scheduler) recordOutcome(ctx context.Context, moduleID string, outcome domain.BatchOutcome) {
	if outcome.Successes+outcome.Failures == 0 {
		return
	}
	if moduleID != "" {
		if done, allowed := s.module.Allow(moduleID); allowed {
			_ = s.module.RecordBatch(ctx, moduleID, outcome, done)
		}
		s.notify.RecordBatch(ctx, moduleID, outcome)
		return
	}
	if done, allowed := s.global.Allow(); allowed {
		_ = s.global.RecordBatch(ctx, outcome, done)
	}
	s.notify.RecordBatch(ctx, "*", outcome)
}

func (s *Scheduler) maybeReap(ctx context.Context, settings domain.Settings) {
	s.reapMu.Lock()
	due := time.Since(s.lastReap) >= time.Minute
	if due {
		s.lastReap = time.Now()
	}
	s.reapMu.Unlock()
	if !due {
		return
	}

	cutoff := time.Now().Add(-time.Duration(settings.StaleLeaseTimeoutSec) * time.Second)
	recovered, err := s.store.RecoverStale(ctx, cutoff, 100)
	if err != nil {
		s.logger.ErrorContext(ctx, "recover stale jobs", "error", err)
		return
	}
	if recovered > 0 {
		s.logger.InfoContext(ctx, "recovered stale jobs", "count", recovered)
		metrics.ReaperRescuedTotal.WithLabelValues("recovered").Add(float64(recovered))
	}
}

// lockName follows the naming scheme wp4odoo_sync_{blogID} for the
// whole-instance run, wp4odoo_sync_{blogID}_{module} for a per-module run.
func (s *Scheduler) lockName(moduleID string) string {
	if moduleID == "" {
		return fmt.Sprintf("wp4odoo_sync_%d", s.blogID)
	}
	return fmt.Sprintf("wp4odoo_sync_%d_%s", s.blogID, moduleID)
}

func (s *Scheduler) memoryUsedPercent() (float64, bool) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		s.logger.Warn("read system memory stats failed", "error", err)
		return 0, false
	}
	return vm.UsedPercent, true
}

func outcomeLabel(r domain.Result) string {
	if r.OK {
		return "success"
	}
	return string(r.Kind)
}
