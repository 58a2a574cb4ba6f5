package repository

import (
	"context"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
)

// SettingsRepo persists the live-tunable knobs
// Settings. Values are stored as a flat key/value table so an operator can
// change one knob without a migration; domain.Settings.Clamp is applied on
// every read, while Set stores the value as given.
type SettingsRepo interface {
	Get(ctx context.Context) (domain.Settings, error)
	Set(ctx context.Context, key string, value string) error

	// BatchSize reads only the batch_size row, clamped, short-circuiting
	// the full Settings load when only that value is needed.
	BatchSize(ctx context.Context) (int, error)
}
