package postgres

import (
	"context"
	"fmt"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ repository.AttemptStore = (*AttemptRepository)(nil)

type AttemptRepository struct {
	pool *pgxpool.Pool
}

func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func (r *AttemptRepository) CreateAttempt(ctx context.Context, a *domain.JobAttempt) (*domain.JobAttempt, error) {
	query := `
		INSERT INTO job_attempts (job_id, attempt_num, worker_id, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, job_id, attempt_num, worker_id, kind, started_at,
		          completed_at, remote_id, error_msg, duration_ms`

	row := r.pool.QueryRow(ctx, query, a.JobID, a.AttemptNum, a.WorkerID, a.StartedAt)
	return scanAttempt(row)
}

func (r *AttemptRepository) CompleteAttempt(ctx context.Context, id int64, kind domain.FailureKind, remoteID uint64, errMsg *string, durationMS int64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE job_attempts
		SET completed_at = NOW(),
		    kind         = $2,
		    remote_id    = $3,
		    error_msg    = $4,
		    duration_ms  = $5
		WHERE id = $1`,
		id, string(kind), remoteID, errMsg, durationMS,
	)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepository) ListByJobID(ctx context.Context, jobID int64) ([]*domain.JobAttempt, error) {
	query := `
		SELECT id, job_id, attempt_num, worker_id, kind, started_at,
		       completed_at, remote_id, error_msg, duration_ms
		FROM job_attempts
		WHERE job_id = $1
		ORDER BY started_at ASC`

	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.JobAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func scanAttempt(row rowScanner) (*domain.JobAttempt, error) {
	var a domain.JobAttempt
	var kind string
	err := row.Scan(
		&a.ID, &a.JobID, &a.AttemptNum, &a.WorkerID, &kind, &a.StartedAt,
		&a.CompletedAt, &a.RemoteID, &a.ErrorMsg, &a.DurationMS,
	)
	if err != nil {
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	a.Kind = domain.FailureKind(kind)
	return &a, nil
}
