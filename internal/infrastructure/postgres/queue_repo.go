package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ repository.QueueStore = (*QueueRepository)(nil)

// QueueRepository is the Postgres-backed repository.QueueStore.
//
// Dedup-insert relies on two partial unique indexes so the database itself
// enforces "at most one job in {pending, processing} per in-flight
// identity", instead of a check-then-insert race:
//
//	jobs_dedup_local_uniq  (module, entity_type, direction, local_id)
//	  WHERE local_id > 0 AND status IN ('pending', 'processing')
//	jobs_dedup_remote_uniq (module, entity_type, direction, remote_id)
//	  WHERE remote_id > 0 AND status IN ('pending', 'processing')
//
// A push job always carries local_id > 0 and a pull job always carries
// remote_id > 0 (never both), so exactly one of the two indexes is the
// conflict target for any given Enqueue call.
type QueueRepository struct {
	pool *pgxpool.Pool
}

func NewQueueRepository(pool *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

const jobColumns = `id, correlation_id, module, direction, entity_type, local_id, remote_id,
 action, payload, priority, status, attempts, max_attempts, error_message,
 scheduled_at, processed_at, created_at, updated_at`

func (r *QueueRepository) Enqueue(ctx context.Context, spec domain.JobSpec, correlationID string) (*domain.Job, bool, error) {
	priority := domain.ClampPriority(spec.Priority)
	maxAttempts := spec.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}

	var conflictTarget string
	switch {
	case spec.LocalID > 0:
		conflictTarget = `(module, entity_type, direction, local_id) WHERE local_id > 0 AND status IN ('pending', 'processing')`
	case spec.RemoteID > 0:
		conflictTarget = `(module, entity_type, direction, remote_id) WHERE remote_id > 0 AND status IN ('pending', 'processing')`
	default:
		return nil, false, fmt.Errorf("enqueue: job must carry a positive local_id or remote_id")
	}

	query := fmt.Sprintf(`
 INSERT INTO jobs (
 correlation_id, module, direction, entity_type, local_id, remote_id,
 action, payload, priority, status, max_attempts, scheduled_at
 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10, $11)
 ON CONFLICT %s
 DO UPDATE SET
 action = EXCLUDED.action,
 payload = EXCLUDED.payload,
 priority = EXCLUDED.priority,
 scheduled_at = EXCLUDED.scheduled_at,
 updated_at = NOW()
 RETURNING %s`, conflictTarget, jobColumns)

	row := r.pool.QueryRow(ctx, query,
		correlationID, spec.Module, spec.Direction, spec.EntityType, spec.LocalID, spec.RemoteID,
		spec.Action, spec.Payload, priority, maxAttempts, spec.ScheduledAt,
	)

	job, err := scanJob(row)
	if err != nil {
		return nil, false, fmt.Errorf("enqueue job: %w", err)
	}

	// Same statement, same NOW(): a genuinely new row has created_at ==
	// updated_at; a coalesced row keeps its original created_at.
	inserted := job.CreatedAt.Equal(job.UpdatedAt)
	return job, inserted, nil
}

func (r *QueueRepository) GetByID(ctx context.Context, jobID int64) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
 SELECT id, correlation_id, module, direction, entity_type, local_id, remote_id,
 action, payload, priority, status, attempts, max_attempts, error_message,
 scheduled_at, processed_at, created_at, updated_at
 FROM jobs WHERE id = $1`, jobID)
	return scanJob(row)
}

func (r *QueueRepository) Claim(ctx context.Context, module string, workerID string, limit int) ([]*domain.Job, error) {
	// FOR UPDATE SKIP LOCKED prevents double-claim across concurrent workers;
	// priority ASC (1 highest) then scheduled_at keeps the total order stable.
	query := `
 UPDATE jobs
 SET status = 'processing',
 attempts = attempts + 1,
 processed_at = NOW(),
 updated_at = NOW()
 WHERE id IN (
 SELECT id FROM jobs
 WHERE status = 'pending'
 AND (scheduled_at IS NULL OR scheduled_at <= NOW())
 AND ($1 = '' OR module = $1)
 ORDER BY priority ASC, scheduled_at ASC NULLS FIRST, id ASC
 LIMIT $2
 FOR UPDATE SKIP LOCKED
 )
 RETURNING id, correlation_id, module, direction, entity_type, local_id, remote_id,
 action, payload, priority, status, attempts, max_attempts, error_message,
 scheduled_at, processed_at, created_at, updated_at`

	rows, err := r.pool.Query(ctx, query, module, limit)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	_ = workerID // worker identity is carried in the JobAttempt row, not the job itself
	return jobs, nil
}

func (r *QueueRepository) Complete(ctx context.Context, jobID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = 'completed', updated_at = NOW() WHERE id = $1`, jobID)
	return err
}

func (r *QueueRepository) Fail(ctx context.Context, jobID int64, lastError string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', error_message = $2, updated_at = NOW() WHERE id = $1`,
		jobID, lastError)
	return err
}

func (r *QueueRepository) Reschedule(ctx context.Context, jobID int64, lastError string, retryAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
 UPDATE jobs
 SET status = 'pending',
 error_message = $2,
 scheduled_at = $3,
 processed_at = NULL,
 updated_at = NOW()
 WHERE id = $1`, jobID, lastError, retryAt)
	return err
}

// RecoverStale is the Reaper's crash-recovery sweep: a job whose
// lease (processed_at) is older than staleCutoff is either handed back to
// pending for another attempt, or failed outright once max_attempts is hit.
func (r *QueueRepository) RecoverStale(ctx context.Context, staleCutoff time.Time, limit int) (int, error) {
	tag, err := r.pool.Exec(ctx, `
 WITH stale AS (
 SELECT id FROM jobs
 WHERE status = 'processing'
 AND processed_at < $1
 ORDER BY processed_at ASC
 LIMIT $2
 FOR UPDATE SKIP LOCKED
 )
 UPDATE jobs
 SET status = CASE WHEN attempts < max_attempts THEN 'pending' ELSE 'failed' END,
 error_message = 'worker lease expired',
 processed_at = NULL,
 updated_at = NOW()
 WHERE id IN (SELECT id FROM stale)`, staleCutoff, limit)
	return int(tag.RowsAffected()), err
}

func (r *QueueRepository) Cancel(ctx context.Context, jobID int64) error {
	_, err := r.pool.Exec(ctx, `
 UPDATE jobs
 SET status = 'failed', error_message = 'cancelled by operator', updated_at = NOW()
 WHERE id = $1 AND status IN ('pending', 'processing')`, jobID)
	return err
}

func (r *QueueRepository) RetryFailed(ctx context.Context, jobID int64) error {
	_, err := r.pool.Exec(ctx, `
 UPDATE jobs
 SET status = 'pending', attempts = 0, error_message = NULL,
 scheduled_at = NULL, processed_at = NULL, updated_at = NOW()
 WHERE id = $1 AND status = 'failed'`, jobID)
	return err
}

func (r *QueueRepository) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx, `
 DELETE FROM jobs
 WHERE status IN ('completed', 'failed') AND updated_at < $1`, olderThan)
	return int(tag.RowsAffected()), err
}

func (r *QueueRepository) ListByStatus(ctx context.Context, status domain.Status, module string, limit, offset int) ([]*domain.Job, error) {
	rows, err := r.pool.Query(ctx, `
 SELECT id, correlation_id, module, direction, entity_type, local_id, remote_id,
 action, payload, priority, status, attempts, max_attempts, error_message,
 scheduled_at, processed_at, created_at, updated_at
 FROM jobs
 WHERE ($1 = '' OR status = $1) AND ($2 = '' OR module = $2)
 ORDER BY created_at DESC
 LIMIT $3 OFFSET $4`, string(status), module, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (r *QueueRepository) Stats(ctx context.Context) (repository.QueueStats, error) {
	var s repository.QueueStats
	var oldestSec float64
	err := r.pool.QueryRow(ctx, `
 SELECT
 COUNT(*) FILTER (WHERE status = 'pending'),
 COUNT(*) FILTER (WHERE status = 'processing'),
 COUNT(*) FILTER (WHERE status = 'completed'),
 COUNT(*) FILTER (WHERE status = 'failed'),
 COALESCE(EXTRACT(EPOCH FROM (NOW() - MIN(created_at) FILTER (WHERE status = 'pending'))), 0)
 FROM jobs`).Scan(&s.Pending, &s.Processing, &s.Completed, &s.Failed, &oldestSec)
	if err != nil {
		return repository.QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	s.OldestPendingAge = time.Duration(oldestSec * float64(time.Second))

	rows, err := r.pool.Query(ctx, `
 SELECT module, COUNT(*) FROM jobs WHERE status = 'pending' GROUP BY module`)
	if err != nil {
		return repository.QueueStats{}, fmt.Errorf("queue stats per module: %w", err)
	}
	defer rows.Close()

	s.PerModule = make(map[string]int)
	for rows.Next() {
		var module string
		var count int
		if err := rows.Scan(&module, &count); err != nil {
			return repository.QueueStats{}, err
		}
		s.PerModule[module] = count
	}
	return s, nil
}

// rowScanner lets scanJob work against both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	err := row.Scan(
		&j.ID, &j.CorrelationID, &j.Module, &j.Direction, &j.EntityType, &j.LocalID, &j.RemoteID,
		&j.Action, &j.Payload, &j.Priority, &j.Status, &j.Attempts, &j.MaxAttempts, &j.ErrorMessage,
		&j.ScheduledAt, &j.ProcessedAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}
