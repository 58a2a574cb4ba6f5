// Package module defines the contract the core consumes from each domain
// plug-in. The plugin-registry/dependency layer
// and the concrete WordPress/Odoo modules themselves are out of scope
// — this package only fixes the seam.
package module

import "context"

// Data is the loosely-typed field map exchanged with a module — modules own
// their own schema; the core only moves it around and hashes it.
type Data map[string]any

// Module is one domain plug-in (e.g. "crm", "products") owning one or more
// entity types and their mapping rules.
type Module interface {
	// ID is the stable module identifier used in Job.Module and lock names.
	ID() string

	// RemoteModel resolves entityType to the remote model tag, or ok=false
	// if the module does not own that entity type.
	RemoteModel(entityType string) (remoteModel string, ok bool)

	LoadLocal(ctx context.Context, entityType string, localID uint64) (Data, error)
	SaveLocal(ctx context.Context, entityType string, data Data, localID uint64) (uint64, error)
	DeleteLocal(ctx context.Context, entityType string, localID uint64) (bool, error)

	MapToRemote(ctx context.Context, entityType string, local Data) (Data, error)
	MapFromRemote(ctx context.Context, entityType string, remote Data) (Data, error)
}

// DedupDomainer is an optional module capability: a remote-side query
// expression identifying orphans from prior failed create attempts.
type DedupDomainer interface {
	DedupDomain(ctx context.Context, entityType string, values Data) (domain []any, ok bool)
}

// PostPullHook lets a module enrich a freshly pulled/saved local entity —
// "fires a post-save hook for meta-module enrichment".
type PostPullHook interface {
	ApplyPullTranslation(ctx context.Context, entityType string, localID uint64, remote Data) error
}

// TranslatableFielder optionally declares which fields participate in the
// translation buffer flush.
type TranslatableFielder interface {
	TranslatableFields(entityType string) []string
}

// TranslationFlusher lets a module consume the end-of-batch translation
// buffer — the accumulated remoteID->localID map built up over a Pull
// batch.
type TranslationFlusher interface {
	FlushPullTranslations(ctx context.Context, remoteModel string, translations map[uint64]uint64) error
}

// DependencyAware optionally exposes the plugin-registry concerns the core
// is otherwise blind to; the registry/admin UI that consumes these
// is out of scope, but the seam is part of the contract.
type DependencyAware interface {
	RequiredModules() []string
	ExclusiveGroup() string
	DependencyStatus() (ok bool, reason string)
}
