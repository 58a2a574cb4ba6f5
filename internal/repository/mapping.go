package repository

import (
	"context"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
)

// MappingStore is the persistence seam for domain.Mapping — the bidirectional local/remote identity link plus
// content hash that the Orchestrator consults before every push and pull.
type MappingStore interface {
	// GetRemoteID resolves a local record to its remote counterpart, ok=false
	// if no mapping exists yet.
	GetRemoteID(ctx context.Context, module, entityType string, localID uint64) (remoteID uint64, ok bool, err error)

	// GetLocalID is the inverse lookup used by Pull.
	GetLocalID(ctx context.Context, module, entityType string, remoteID uint64) (localID uint64, ok bool, err error)

	// BatchGetRemoteIDs resolves many local IDs in one round trip.
	BatchGetRemoteIDs(ctx context.Context, module, entityType string, localIDs []uint64) (map[uint64]uint64, error)

	// Save upserts a mapping, refreshing SyncHash and UpdatedAt
	//.
	Save(ctx context.Context, m domain.Mapping) error

	// Remove deletes a mapping — used when the remote record is confirmed
	// gone.
	Remove(ctx context.Context, module, entityType string, localID uint64) error

	// MarkPolled stamps LastPolledAt on this mapping.
	MarkPolled(ctx context.Context, module, entityType string, localID uint64, at time.Time) error

	// GetStalePollMappings returns mappings whose LastPolledAt is older than
	// cutoff (or nil), bounded to limit.
	GetStalePollMappings(ctx context.Context, module, entityType string, cutoff time.Time, limit int) ([]domain.Mapping, error)

	// GetModuleEntityMappings lists every mapping for a (module, entityType)
	// pair — used by Reconciler.Reconcile to diff against the remote side.
	GetModuleEntityMappings(ctx context.Context, module, entityType string) ([]domain.Mapping, error)

	// CleanupOrphans removes mappings flagged as orphaned by the caller
	//. When dryRun is true nothing is
	// deleted and Removed stays zero.
	CleanupOrphans(ctx context.Context, orphans []domain.Mapping, dryRun bool) (domain.OrphanCleanupReport, error)
}
