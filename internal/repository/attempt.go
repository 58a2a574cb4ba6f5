package repository

import (
	"context"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
)

// AttemptStore records the per-attempt RPC drive-through ledger used for
// diagnostics and retry accounting.
type AttemptStore interface {
	// CreateAttempt opens an attempt record at the moment the Orchestrator
	// starts driving a job. Returns the persisted attempt (with its
	// DB-generated ID) so the caller can close it with CompleteAttempt.
	CreateAttempt(ctx context.Context, attempt *domain.JobAttempt) (*domain.JobAttempt, error)

	// CompleteAttempt closes an open attempt record with the RPC outcome.
	// kind is empty on success. remoteID is non-zero when the call created a
	// remote record. errMsg is nil on success.
	CompleteAttempt(ctx context.Context, id int64, kind domain.FailureKind, remoteID uint64, errMsg *string, durationMS int64) error

	// ListByJobID returns all attempts for a job, ordered by started_at ASC.
	ListByJobID(ctx context.Context, jobID int64) ([]*domain.JobAttempt, error)
}
