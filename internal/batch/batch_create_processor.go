// Package batch implements the BatchCreateProcessor: when many
// Create jobs pile up for the same (module, entityType), driving them one
// RPC call at a time is wasteful — Odoo's create() accepts a list of value
// dicts and returns a list of ids in the same order. This package finds
// those groups and issues one create_batch call instead of N creates,
// falling back to the normal per-job path if the batch call itself fails.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/postgres"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/module"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/orchestrator"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/retry"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/rpc"
	"github.com/jackc/pgx/v5/pgxpool"
)

const minBatchGroupSize = 2

// Outcome summarizes one Process call.
type Outcome struct {
	Processed int
	Successes int
	Failures  int
	// Handled holds the IDs of every job this call drove to completion
	// (success, permanent failure, or reschedule) — the Scheduler must skip
	// these in its own per-job loop.
	Handled map[int64]bool
}

type Processor struct {
	store    repository.QueueStore
	attempts repository.AttemptStore
	mappings repository.MappingStore
	rpcc     rpc.Client
	resolve  orchestrator.Resolver
	orch     *orchestrator.Orchestrator
	pool     *pgxpool.Pool
	logger   *slog.Logger
}

func New(
	store repository.QueueStore,
	attempts repository.AttemptStore,
	mappings repository.MappingStore,
	rpcc rpc.Client,
	resolve orchestrator.Resolver,
	orch *orchestrator.Orchestrator,
	pool *pgxpool.Pool,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		store: store, attempts: attempts, mappings: mappings,
		rpcc: rpcc, resolve: resolve, orch: orch, pool: pool,
		logger: logger.With("component", "batch_create_processor"),
	}
}

// Process groups every claimed (processing) push Create job in jobs by
// (module, entityType), dedups each group by localID keeping the most
// recently created job, and
// batch-creates every group with at least minBatchGroupSize members. Jobs
// not claimed by a qualifying group are left untouched — the caller drives
// those individually.
func (p *Processor) Process(ctx context.Context, jobs []*domain.Job) Outcome {
	out := Outcome{Handled: make(map[int64]bool)}

	groups := groupCreates(jobs)
	for key, group := range groups {
		group = dedupByLocalID(group)
		if len(group) < minBatchGroupSize {
			continue
		}
		p.processGroup(ctx, key, group, &out)
	}
	return out
}

type groupKey struct {
	module     string
	entityType string
}

func groupCreates(jobs []*domain.Job) map[groupKey][]*domain.Job {
	groups := make(map[groupKey][]*domain.Job)
	for _, j := range jobs {
		if j.Action != domain.ActionCreate || j.Direction == domain.RemoteToLocal || j.Status != domain.StatusProcessing {
			continue
		}
		key := groupKey{module: j.Module, entityType: j.EntityType}
		groups[key] = append(groups[key], j)
	}
	return groups
}

// dedupByLocalID keeps only the most recently created job per localID —
// defensive against a stale duplicate surviving from a prior retry cycle.
func dedupByLocalID(jobs []*domain.Job) []*domain.Job {
	latest := make(map[uint64]*domain.Job, len(jobs))
	for _, j := range jobs {
		cur, ok := latest[j.LocalID]
		if !ok || j.CreatedAt.After(cur.CreatedAt) {
			latest[j.LocalID] = j
		}
	}
	out := make([]*domain.Job, 0, len(latest))
	for _, j := range latest {
		out = append(out, j)
	}
	return out
}

func (p *Processor) processGroup(ctx context.Context, key groupKey, group []*domain.Job, out *Outcome) {
	mod, ok := p.resolve(key.module)
	if !ok {
		p.fallbackGroup(ctx, group, out)
		return
	}
	remoteModel, ok := mod.RemoteModel(key.entityType)
	if !ok {
		p.fallbackGroup(ctx, group, out)
		return
	}

	lockName := fmt.Sprintf("wp4odoo_batch_%s_%s", key.module, remoteModel)
	lock, acquired, err := postgres.TryAcquireAdvisoryLock(ctx, p.pool, lockName)
	if err != nil || !acquired {
		p.logger.WarnContext(ctx, "batch lock unavailable, falling back to per-job", "module", key.module, "entity_type", key.entityType)
		p.fallbackGroup(ctx, group, out)
		return
	}
	defer func() { _ = lock.Release(ctx) }()

	// values, hashes and mappedJobs stay index-aligned with each other — the
	// ids CreateBatch returns come back in the same order as values.
	values := make([]map[string]any, 0, len(group))
	hashes := make([]string, 0, len(group))
	mappedJobs := make([]*domain.Job, 0, len(group))
	for _, j := range group {
		local, err := p.loadLocal(ctx, mod, j)
		if err != nil {
			p.logger.WarnContext(ctx, "load local for batch create failed", "job_id", j.ID, "error", err)
			p.fallbackJob(ctx, j, out)
			continue
		}
		v, err := mod.MapToRemote(ctx, key.entityType, local)
		if err != nil {
			p.logger.WarnContext(ctx, "map to remote for batch create failed", "job_id", j.ID, "error", err)
			p.fallbackJob(ctx, j, out)
			continue
		}
		values = append(values, v)
		hashes = append(hashes, orchestrator.CanonicalHash(v))
		mappedJobs = append(mappedJobs, j)
	}
	if len(values) < minBatchGroupSize {
		for _, j := range mappedJobs {
			if !out.Handled[j.ID] {
				p.fallbackJob(ctx, j, out)
			}
		}
		return
	}

	start := time.Now()
	ids, err := p.rpcc.CreateBatch(ctx, remoteModel, values)
	duration := time.Since(start).Milliseconds()
	if err != nil || len(ids) != len(values) {
		p.logger.WarnContext(ctx, "batch create failed, falling back to per-job", "module", key.module, "entity_type", key.entityType, "error", err)
		for _, j := range mappedJobs {
			p.fallbackJob(ctx, j, out)
		}
		return
	}

	for i, j := range mappedJobs {
		p.completeCreate(ctx, j, key.module, key.entityType, remoteModel, ids[i], hashes[i], duration, out)
	}
}

func (p *Processor) loadLocal(ctx context.Context, mod module.Module, j *domain.Job) (module.Data, error) {
	if len(j.Payload) == 0 {
		return mod.LoadLocal(ctx, j.EntityType, j.LocalID)
	}
	var data module.Data
	if err := json.Unmarshal(j.Payload, &data); err != nil {
		return nil, fmt.Errorf("decode job payload: %w", err)
	}
	return data, nil
}

func (p *Processor) completeCreate(ctx context.Context, j *domain.Job, moduleID, entityType, remoteModel string, remoteID uint64, syncHash string, durationMS int64, out *Outcome) {
	// Claim already incremented j.Attempts to this dispatch's attempt number.
	attempt, _ := p.attempts.CreateAttempt(ctx, &domain.JobAttempt{JobID: j.ID, AttemptNum: j.Attempts, StartedAt: time.Now()})

	m := domain.Mapping{Module: moduleID, EntityType: entityType, LocalID: j.LocalID, RemoteID: remoteID, RemoteModel: remoteModel, SyncHash: syncHash}
	if err := p.mappings.Save(ctx, m); err != nil {
		p.logger.ErrorContext(ctx, "save mapping after batch create failed", "job_id", j.ID, "error", err)
		p.markFailure(ctx, j, attempt, domain.Transient, fmt.Sprintf("save mapping: %v", err), remoteID, durationMS, out)
		return
	}
	if err := p.store.Complete(ctx, j.ID); err != nil {
		p.logger.ErrorContext(ctx, "complete job after batch create failed", "job_id", j.ID, "error", err)
		return
	}
	if attempt != nil {
		_ = p.attempts.CompleteAttempt(ctx, attempt.ID, "", remoteID, nil, durationMS)
	}
	out.Handled[j.ID] = true
	out.Processed++
	out.Successes++
}

func (p *Processor) markFailure(ctx context.Context, j *domain.Job, attempt *domain.JobAttempt, kind domain.FailureKind, msg string, remoteID uint64, durationMS int64, out *Outcome) {
	if attempt != nil {
		_ = p.attempts.CompleteAttempt(ctx, attempt.ID, kind, remoteID, &msg, durationMS)
	}
	out.Handled[j.ID] = true
	out.Processed++
	out.Failures++

	if kind == domain.Permanent || j.Attempts >= j.MaxAttempts {
		if err := p.store.Fail(ctx, j.ID, msg); err != nil {
			p.logger.ErrorContext(ctx, "mark job failed", "job_id", j.ID, "error", err)
		}
		return
	}
	retryAt := time.Now().Add(retry.NextDelay(j.Attempts - 1))
	if err := p.store.Reschedule(ctx, j.ID, msg, retryAt); err != nil {
		p.logger.ErrorContext(ctx, "reschedule job", "job_id", j.ID, "error", err)
	}
}

// fallbackGroup drives every job in group individually through the
// Orchestrator — used when a group can't be batched.
func (p *Processor) fallbackGroup(ctx context.Context, group []*domain.Job, out *Outcome) {
	for _, j := range group {
		p.fallbackJob(ctx, j, out)
	}
}

func (p *Processor) fallbackJob(ctx context.Context, j *domain.Job, out *Outcome) {
	start := time.Now()
	// Claim already incremented j.Attempts to this dispatch's attempt number.
	attempt, _ := p.attempts.CreateAttempt(ctx, &domain.JobAttempt{JobID: j.ID, AttemptNum: j.Attempts, StartedAt: start})
	result := p.orch.PushToRemote(ctx, j)
	duration := time.Since(start).Milliseconds()

	out.Handled[j.ID] = true
	out.Processed++

	if result.OK {
		out.Successes++
		if err := p.store.Complete(ctx, j.ID); err != nil {
			p.logger.ErrorContext(ctx, "complete job after fallback push", "job_id", j.ID, "error", err)
		}
		if attempt != nil {
			_ = p.attempts.CompleteAttempt(ctx, attempt.ID, "", result.CreatedRemoteID, nil, duration)
		}
		return
	}

	out.Failures++
	msg := result.Message
	if attempt != nil {
		_ = p.attempts.CompleteAttempt(ctx, attempt.ID, result.Kind, result.CreatedRemoteID, &msg, duration)
	}
	if result.Kind == domain.Permanent || j.Attempts >= j.MaxAttempts {
		if err := p.store.Fail(ctx, j.ID, msg); err != nil {
			p.logger.ErrorContext(ctx, "mark job failed after fallback push", "job_id", j.ID, "error", err)
		}
		return
	}
	retryAt := time.Now().Add(retry.NextDelay(j.Attempts - 1))
	if err := p.store.Reschedule(ctx, j.ID, msg, retryAt); err != nil {
		p.logger.ErrorContext(ctx, "reschedule job after fallback push", "job_id", j.ID, "error", err)
	}
}
