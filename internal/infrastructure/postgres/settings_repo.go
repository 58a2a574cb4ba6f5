package postgres

import (
	"context"
	"fmt"
	"strconv"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ repository.SettingsRepo = (*SettingsRepository)(nil)

// SettingsRepository stores Settings as a flat key/value table so
// an operator can tune one knob live without a schema migration.
type SettingsRepository struct {
	pool *pgxpool.Pool
}

func NewSettingsRepository(pool *pgxpool.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

func (r *SettingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return domain.Settings{}, err
		}
		kv[k] = v
	}

	s := domain.DefaultSettings()
	atoi := func(key string, dst *int) {
		if v, ok := kv[key]; ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	atoi("batch_size", &s.BatchSize)
	atoi("stale_lease_timeout_sec", &s.StaleLeaseTimeoutSec)
	atoi("scheduler_budget_sec", &s.SchedulerBudgetSec)
	atoi("scheduler_iteration_cap", &s.SchedulerIterationCap)
	atoi("memory_cap_percent", &s.MemoryCapPercent)
	atoi("global_breaker_failure_threshold", &s.GlobalBreakerFailureThreshold)
	atoi("global_breaker_recovery_sec", &s.GlobalBreakerRecoverySec)
	atoi("module_breaker_failure_threshold", &s.ModuleBreakerFailureThreshold)
	atoi("module_breaker_recovery_sec", &s.ModuleBreakerRecoverySec)
	atoi("failure_threshold", &s.FailureThreshold)
	atoi("failure_cooldown_sec", &s.FailureCooldownSec)
	atoi("retention_days", &s.RetentionDays)
	if v, ok := kv["log_level"]; ok {
		s.LogLevel = v
	}
	return s.Clamp(), nil
}

func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx, `
 INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	return err
}

func (r *SettingsRepository) BatchSize(ctx context.Context) (int, error) {
	var v string
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = 'batch_size'`).Scan(&v)
	if err != nil {
		return domain.DefaultSettings().BatchSize, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return domain.DefaultSettings().BatchSize, nil
	}
	return domain.Settings{BatchSize: n}.Clamp().BatchSize, nil
}
