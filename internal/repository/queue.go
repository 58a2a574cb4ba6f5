package repository

import (
	"context"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
)

// QueueStore is the persistence seam for domain.Job. Dedup-insert, claim-via-conditional-update and stale-lease
// recovery all live behind this one interface so the Enqueuer, Scheduler and
// Reaper never see SQL.
//
// UseCase depends on interface, not concrete implementation: can swap DB
// later without touching callers, and a fake can stand in for tests.
type QueueStore interface {
	// Enqueue inserts a new job, or coalesces into the existing job's
	// action/payload/priority/scheduledAt if one is already in {pending,
	// processing} for the same (module, entityType, direction, localID>0) or
	// (module, entityType, direction, remoteID>0) identity. inserted reports
	// whether a new row was created.
	Enqueue(ctx context.Context, spec domain.JobSpec, correlationID string) (job *domain.Job, inserted bool, err error)

	GetByID(ctx context.Context, jobID int64) (*domain.Job, error)

	// Claim atomically moves up to limit pending jobs for module to
	// processing, stamping ProcessedAt; workerID is not stored on the job.
	// Passing module="" claims across all modules.
	Claim(ctx context.Context, module string, workerID string, limit int) ([]*domain.Job, error)

	Complete(ctx context.Context, jobID int64) error
	Fail(ctx context.Context, jobID int64, lastError string) error
	Reschedule(ctx context.Context, jobID int64, lastError string, retryAt time.Time) error

	// RecoverStale re-queues or fails jobs whose lease (ProcessedAt) is older
	// than staleCutoff — the Reaper's crash-recovery sweep.
	RecoverStale(ctx context.Context, staleCutoff time.Time, limit int) (recovered int, err error)

	// Cancel marks a pending or processing job as failed without consuming
	// an attempt.
	Cancel(ctx context.Context, jobID int64) error

	// RetryFailed resets a failed job back to pending for immediate
	// reclaim.
	RetryFailed(ctx context.Context, jobID int64) error

	// Cleanup deletes completed/failed jobs older than olderThan.
	Cleanup(ctx context.Context, olderThan time.Time) (removed int, err error)

	// ListByStatus backs "queue list" with pagination.
	ListByStatus(ctx context.Context, status domain.Status, module string, limit, offset int) ([]*domain.Job, error)

	// Stats backs "queue stats" / health checks.
	Stats(ctx context.Context) (QueueStats, error)
}

// QueueStats is the depth/backlog snapshot returned by QueueStore.Stats.
type QueueStats struct {
	Pending          int
	Processing       int
	Completed        int
	Failed           int
	OldestPendingAge time.Duration
	PerModule        map[string]int
}
