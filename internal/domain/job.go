package domain

import (
	"errors"
	"time"
)

var (
	ErrJobNotFound             = errors.New("job not found")
	ErrDuplicateJob            = errors.New("job with this key already exists")
	ErrPayloadTooLarge         = errors.New("payload exceeds 1 MiB limit")
	ErrEntityTypeNotRegistered = errors.New("entity type not registered")
	ErrNoDataToPush            = errors.New("no data to push")
	ErrInvalidStatusFilter     = errors.New("invalid status filter")
)

// MaxPayloadBytes is the hard limit on a job's payload blob.
const MaxPayloadBytes = 1 << 20 // 1 MiB

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Direction is the sync direction of a job.
type Direction string

const (
	LocalToRemote Direction = "local_to_remote"
	RemoteToLocal Direction = "remote_to_local"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

const DefaultMaxAttempts = 3

// ClampPriority enforces the 1-10 total order.
func ClampPriority(p uint8) uint8 {
	if p < 1 {
		return 1
	}
	if p > 10 {
		return 10
	}
	return p
}

// Job is the persistent unit of work processed by the queue.
type Job struct {
	ID            int64
	CorrelationID string
	Module        string
	Direction     Direction
	EntityType    string
	LocalID       uint64
	RemoteID      uint64
	Action        Action
	Payload       []byte // opaque JSON, nil if absent
	Priority      uint8

	Status       Status
	Attempts     int
	MaxAttempts  int
	ErrorMessage *string

	ScheduledAt *time.Time // nil = immediately eligible
	ProcessedAt *time.Time // claim timestamp
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobSpec is the producer-facing input to Enqueue.
type JobSpec struct {
	Module      string
	Direction   Direction
	EntityType  string
	Action      Action
	LocalID     uint64
	RemoteID    uint64
	Payload     []byte
	Priority    uint8
	ScheduledAt *time.Time
	MaxAttempts int
}

// JobAttempt records the outcome of a single drive-through-Orchestrator
// attempt for a job: one row per try, so retries accumulate a full history
// instead of overwriting the last outcome.
type JobAttempt struct {
	ID          int64
	JobID       int64
	AttemptNum  int
	WorkerID    string
	Kind        FailureKind // empty string on success
	StartedAt   time.Time
	CompletedAt *time.Time
	RemoteID    uint64
	ErrorMsg    *string
	DurationMS  *int64
}
