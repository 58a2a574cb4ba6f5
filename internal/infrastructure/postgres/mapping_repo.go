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

var _ repository.MappingStore = (*MappingRepository)(nil)

// MappingRepository backs repository.MappingStore. Two unique indexes —
// (module, entity_type, local_id) and (module, entity_type, remote_id) —
// make GetRemoteID/GetLocalID single-index lookups in both directions.
type MappingRepository struct {
	pool *pgxpool.Pool
}

func NewMappingRepository(pool *pgxpool.Pool) *MappingRepository {
	return &MappingRepository{pool: pool}
}

func (r *MappingRepository) GetRemoteID(ctx context.Context, module, entityType string, localID uint64) (uint64, bool, error) {
	var remoteID uint64
	err := r.pool.QueryRow(ctx, `
 SELECT remote_id FROM mappings
 WHERE module = $1 AND entity_type = $2 AND local_id = $3`,
		module, entityType, localID).Scan(&remoteID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get remote id: %w", err)
	}
	return remoteID, true, nil
}

func (r *MappingRepository) GetLocalID(ctx context.Context, module, entityType string, remoteID uint64) (uint64, bool, error) {
	var localID uint64
	err := r.pool.QueryRow(ctx, `
 SELECT local_id FROM mappings
 WHERE module = $1 AND entity_type = $2 AND remote_id = $3`,
		module, entityType, remoteID).Scan(&localID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get local id: %w", err)
	}
	return localID, true, nil
}

func (r *MappingRepository) BatchGetRemoteIDs(ctx context.Context, module, entityType string, localIDs []uint64) (map[uint64]uint64, error) {
	result := make(map[uint64]uint64, len(localIDs))
	if len(localIDs) == 0 {
		return result, nil
	}

	rows, err := r.pool.Query(ctx, `
 SELECT local_id, remote_id FROM mappings
 WHERE module = $1 AND entity_type = $2 AND local_id = ANY($3)`,
		module, entityType, localIDs)
	if err != nil {
		return nil, fmt.Errorf("batch get remote ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var localID, remoteID uint64
		if err := rows.Scan(&localID, &remoteID); err != nil {
			return nil, err
		}
		result[localID] = remoteID
	}
	return result, nil
}

func (r *MappingRepository) Save(ctx context.Context, m domain.Mapping) error {
	_, err := r.pool.Exec(ctx, `
 INSERT INTO mappings (module, entity_type, local_id, remote_id, remote_model, sync_hash, last_polled_at)
 VALUES ($1, $2, $3, $4, $5, $6, $7)
 ON CONFLICT (module, entity_type, local_id) DO UPDATE
 SET remote_id = EXCLUDED.remote_id,
 remote_model = EXCLUDED.remote_model,
 sync_hash = EXCLUDED.sync_hash,
 last_polled_at = COALESCE(EXCLUDED.last_polled_at, mappings.last_polled_at),
 updated_at = NOW()`,
		m.Module, m.EntityType, m.LocalID, m.RemoteID, m.RemoteModel, m.SyncHash, m.LastPolledAt)
	if err != nil {
		return fmt.Errorf("save mapping: %w", err)
	}
	return nil
}

func (r *MappingRepository) Remove(ctx context.Context, module, entityType string, localID uint64) error {
	_, err := r.pool.Exec(ctx, `
 DELETE FROM mappings WHERE module = $1 AND entity_type = $2 AND local_id = $3`,
		module, entityType, localID)
	return err
}

func (r *MappingRepository) MarkPolled(ctx context.Context, module, entityType string, localID uint64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
 UPDATE mappings SET last_polled_at = $4, updated_at = NOW()
 WHERE module = $1 AND entity_type = $2 AND local_id = $3`,
		module, entityType, localID, at)
	return err
}

func (r *MappingRepository) GetStalePollMappings(ctx context.Context, module, entityType string, cutoff time.Time, limit int) ([]domain.Mapping, error) {
	rows, err := r.pool.Query(ctx, `
 SELECT module, entity_type, local_id, remote_id, remote_model, sync_hash,
 last_polled_at, created_at, updated_at
 FROM mappings
 WHERE module = $1 AND entity_type = $2
 AND (last_polled_at IS NULL OR last_polled_at < $3)
 ORDER BY last_polled_at ASC NULLS FIRST
 LIMIT $4`, module, entityType, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("get stale poll mappings: %w", err)
	}
	defer rows.Close()
	return scanMappings(rows)
}

func (r *MappingRepository) GetModuleEntityMappings(ctx context.Context, module, entityType string) ([]domain.Mapping, error) {
	rows, err := r.pool.Query(ctx, `
 SELECT module, entity_type, local_id, remote_id, remote_model, sync_hash,
 last_polled_at, created_at, updated_at
 FROM mappings WHERE module = $1 AND entity_type = $2`, module, entityType)
	if err != nil {
		return nil, fmt.Errorf("get module entity mappings: %w", err)
	}
	defer rows.Close()
	return scanMappings(rows)
}

func (r *MappingRepository) CleanupOrphans(ctx context.Context, orphans []domain.Mapping, dryRun bool) (domain.OrphanCleanupReport, error) {
	report := domain.OrphanCleanupReport{Scanned: len(orphans), Orphans: orphans}
	if dryRun || len(orphans) == 0 {
		return report, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return report, fmt.Errorf("begin cleanup tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range orphans {
		tag, err := tx.Exec(ctx, `
 DELETE FROM mappings WHERE module = $1 AND entity_type = $2 AND local_id = $3`,
			m.Module, m.EntityType, m.LocalID)
		if err != nil {
			return report, fmt.Errorf("delete orphan mapping: %w", err)
		}
		report.Removed += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return report, fmt.Errorf("commit cleanup tx: %w", err)
	}
	return report, nil
}

func scanMappings(rows pgx.Rows) ([]domain.Mapping, error) {
	var out []domain.Mapping
	for rows.Next() {
		var m domain.Mapping
		if err := rows.Scan(&m.Module, &m.EntityType, &m.LocalID, &m.RemoteID, &m.RemoteModel,
			&m.SyncHash, &m.LastPolledAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
