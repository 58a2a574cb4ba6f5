package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ repository.BreakerStore = (*BreakerRepository)(nil)

// BreakerRepository is the authoritative store behind the in-process
// gobreaker fast path. A single row (id = 1) holds the
// global breaker; one row per module holds the per-module breakers.
type BreakerRepository struct {
	pool *pgxpool.Pool
}

func NewBreakerRepository(pool *pgxpool.Pool) *BreakerRepository {
	return &BreakerRepository{pool: pool}
}

func (r *BreakerRepository) GetGlobal(ctx context.Context) (domain.GlobalBreakerState, error) {
	var s domain.GlobalBreakerState
	err := r.pool.QueryRow(ctx, `
 SELECT failures, opened_at, probe_held, updated_at
 FROM global_breaker_state WHERE id = 1`).
		Scan(&s.Failures, &s.OpenedAt, &s.ProbeHeld, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GlobalBreakerState{}, nil
	}
	if err != nil {
		return domain.GlobalBreakerState{}, fmt.Errorf("get global breaker: %w", err)
	}
	return s, nil
}

func (r *BreakerRepository) SaveGlobal(ctx context.Context, s domain.GlobalBreakerState) error {
	_, err := r.pool.Exec(ctx, `
 INSERT INTO global_breaker_state (id, failures, opened_at, probe_held, updated_at)
 VALUES (1, $1, $2, $3, NOW())
 ON CONFLICT (id) DO UPDATE
 SET failures = EXCLUDED.failures, opened_at = EXCLUDED.opened_at,
 probe_held = EXCLUDED.probe_held, updated_at = NOW()`,
		s.Failures, s.OpenedAt, s.ProbeHeld)
	return err
}

func (r *BreakerRepository) GetModule(ctx context.Context, module string) (domain.ModuleBreakerState, bool, error) {
	var s domain.ModuleBreakerState
	err := r.pool.QueryRow(ctx, `
 SELECT module, failures, opened_at, probe_held, updated_at
 FROM module_breaker_state WHERE module = $1`, module).
		Scan(&s.Module, &s.Failures, &s.OpenedAt, &s.ProbeHeld, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ModuleBreakerState{}, false, nil
	}
	if err != nil {
		return domain.ModuleBreakerState{}, false, fmt.Errorf("get module breaker: %w", err)
	}
	return s, true, nil
}

func (r *BreakerRepository) SaveModule(ctx context.Context, s domain.ModuleBreakerState) error {
	_, err := r.pool.Exec(ctx, `
 INSERT INTO module_breaker_state (module, failures, opened_at, probe_held, updated_at)
 VALUES ($1, $2, $3, $4, NOW())
 ON CONFLICT (module) DO UPDATE
 SET failures = EXCLUDED.failures, opened_at = EXCLUDED.opened_at,
 probe_held = EXCLUDED.probe_held, updated_at = NOW()`,
		s.Module, s.Failures, s.OpenedAt, s.ProbeHeld)
	return err
}

func (r *BreakerRepository) ListOpenModules(ctx context.Context) ([]domain.ModuleBreakerState, error) {
	rows, err := r.pool.Query(ctx, `
 SELECT module, failures, opened_at, probe_held, updated_at
 FROM module_breaker_state WHERE opened_at IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list open module breakers: %w", err)
	}
	defer rows.Close()

	var out []domain.ModuleBreakerState
	for rows.Next() {
		var s domain.ModuleBreakerState
		if err := rows.Scan(&s.Module, &s.Failures, &s.OpenedAt, &s.ProbeHeld, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *BreakerRepository) ResetGlobal(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
 UPDATE global_breaker_state SET failures = 0, opened_at = NULL, probe_held = false, updated_at = NOW()
 WHERE id = 1`)
	return err
}

func (r *BreakerRepository) ResetModule(ctx context.Context, module string) error {
	_, err := r.pool.Exec(ctx, `
 UPDATE module_breaker_state SET failures = 0, opened_at = NULL, probe_held = false, updated_at = NOW()
 WHERE module = $1`, module)
	return err
}
