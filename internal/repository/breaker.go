package repository

import (
	"context"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
)

// BreakerStore persists the authoritative circuit-breaker rows that back
// the in-process gobreaker fast path.
// A Postgres row survives process restarts; Redis (internal/infrastructure/rediscache)
// sits in front of it as a short-lived, cluster-shared cache.
type BreakerStore interface {
	GetGlobal(ctx context.Context) (domain.GlobalBreakerState, error)
	SaveGlobal(ctx context.Context, s domain.GlobalBreakerState) error

	GetModule(ctx context.Context, module string) (domain.ModuleBreakerState, bool, error)
	SaveModule(ctx context.Context, s domain.ModuleBreakerState) error
	ListOpenModules(ctx context.Context) ([]domain.ModuleBreakerState, error)

	// ResetGlobal and ResetModule clear the persisted rows for
	// breaker.Global.Reset and breaker.Module.Reset.
	ResetGlobal(ctx context.Context) error
	ResetModule(ctx context.Context, module string) error
}
