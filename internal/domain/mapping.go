package domain

import (
	"errors"
	"time"
)

var (
	ErrMappingNotFound = errors.New("mapping not found")
)

// Mapping is the persistent bidirectional identity link plus content hash.
type Mapping struct {
	Module       string
	EntityType   string
	LocalID      uint64
	RemoteID     uint64
	RemoteModel  string
	SyncHash     string // SHA-256 hex of the canonical remote payload
	LastPolledAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrphanCleanupReport is returned by MappingStore.CleanupOrphans and
// Reconciler.
type OrphanCleanupReport struct {
	Scanned int
	Orphans []Mapping
	Removed int // only non-zero when the caller asked for a real (non-dry-run) cleanup
}
