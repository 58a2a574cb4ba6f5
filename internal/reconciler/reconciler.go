// Package reconciler finds mappings whose remote record has disappeared
// (deleted directly in the ERP, outside this engine's control) and,
// optionally, removes them.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/metrics"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/orchestrator"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/rpc"
)

const remoteExistenceChunkSize = 200

type Reconciler struct {
	mappings repository.MappingStore
	rpcc     rpc.Client
	resolve  orchestrator.Resolver
	logger   *slog.Logger
}

func New(mappings repository.MappingStore, rpcc rpc.Client, resolve orchestrator.Resolver, logger *slog.Logger) *Reconciler {
	return &Reconciler{mappings: mappings, rpcc: rpcc, resolve: resolve, logger: logger.With("component", "reconciler")}
}

// Reconcile loads every mapping for (moduleID, entityType), checks which
// remote records still exist in chunks of remoteExistenceChunkSize, and
// reports the orphans. When fix is true the orphaned mappings are removed.
func (r *Reconciler) Reconcile(ctx context.Context, moduleID, entityType string, fix bool) (domain.OrphanCleanupReport, error) {
	mod, ok := r.resolve(moduleID)
	if !ok {
		return domain.OrphanCleanupReport{}, fmt.Errorf("module %q not registered", moduleID)
	}
	remoteModel, ok := mod.RemoteModel(entityType)
	if !ok {
		return domain.OrphanCleanupReport{}, fmt.Errorf("entity type %q not owned by module %q", entityType, moduleID)
	}

	mappings, err := r.mappings.GetModuleEntityMappings(ctx, moduleID, entityType)
	if err != nil {
		return domain.OrphanCleanupReport{}, fmt.Errorf("list mappings: %w", err)
	}
	if len(mappings) == 0 {
		return domain.OrphanCleanupReport{Scanned: 0}, nil
	}

	existing, err := r.remoteExistenceSet(ctx, remoteModel, mappings)
	if err != nil {
		return domain.OrphanCleanupReport{}, fmt.Errorf("check remote existence: %w", err)
	}

	orphans := make([]domain.Mapping, 0)
	for _, m := range mappings {
		if !existing[m.RemoteID] {
			orphans = append(orphans, m)
		}
	}

	report, err := r.mappings.CleanupOrphans(ctx, orphans, !fix)
	if err != nil {
		return domain.OrphanCleanupReport{}, fmt.Errorf("cleanup orphans: %w", err)
	}
	report.Scanned = len(mappings)
	report.Orphans = orphans

	action := "found"
	if fix {
		action = "removed"
	}
	metrics.ReconcilerOrphansTotal.WithLabelValues(moduleID, entityType, action).Add(float64(len(orphans)))
	r.logger.InfoContext(ctx, "reconcile complete", "module", moduleID, "entity_type", entityType, "scanned", report.Scanned, "orphans", len(orphans), "fix", fix)

	return report, nil
}

func (r *Reconciler) remoteExistenceSet(ctx context.Context, remoteModel string, mappings []domain.Mapping) (map[uint64]bool, error) {
	existing := make(map[uint64]bool, len(mappings))
	for start := 0; start < len(mappings); start += remoteExistenceChunkSize {
		end := start + remoteExistenceChunkSize
		if end > len(mappings) {
			end = len(mappings)
		}
		chunkIDs := make([]any, 0, end-start)
		for _, m := range mappings[start:end] {
			chunkIDs = append(chunkIDs, m.RemoteID)
		}

		ids, err := r.rpcc.Search(ctx, remoteModel, []any{[]any{"id", "in", chunkIDs}})
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			existing[id] = true
		}
	}
	return existing, nil
}
