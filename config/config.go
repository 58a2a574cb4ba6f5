package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// Config is the boot-time, process-level configuration. Everything that can
// change without a restart lives in domain.Settings via
// internal/repository.SettingsRepo instead.
type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	// BlogID identifies the WordPress site this process drives, naming the
	// scheduler's advisory locks in a multisite install.
	BlogID int `env:"BLOG_ID" envDefault:"1" validate:"min=1"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// OdooURL/OdooDB/OdooUID/OdooPassword address the remote ERP this
	// engine drives jobs against.
	OdooURL      string `env:"ODOO_URL,required" validate:"required"`
	OdooDB       string `env:"ODOO_DB,required" validate:"required"`
	OdooUID      uint64 `env:"ODOO_UID,required" validate:"required"`
	OdooPassword string `env:"ODOO_PASSWORD,required" validate:"required"`

	WorkerCount       int    `env:"WORKER_COUNT" envDefault:"5" validate:"min=1,max=100"`
	PollIntervalSec   int    `env:"POLL_INTERVAL_SEC" envDefault:"1" validate:"min=1,max=60"`
	ReaperIntervalSec int    `env:"REAPER_INTERVAL_SEC" envDefault:"30" validate:"min=5,max=300"`
	ReconcileCron     string `env:"RECONCILE_CRON" envDefault:"0 */6 * * *"`

	// RateLimitPerSec/RateLimitBurst bound outbound RPC calls per module
	// (internal/ratelimit).
	RateLimitPerSec float64 `env:"RATE_LIMIT_PER_SEC" envDefault:"5"`
	RateLimitBurst  int     `env:"RATE_LIMIT_BURST" envDefault:"10"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	AdminPort   string `env:"ADMIN_PORT" envDefault:"8081"`
	// AdminToken gates the operator HTTP surface (internal/adminhttp); there
	// is no end-user auth concept in this engine, so a single shared bearer
	// token compared in constant time is enough.
	AdminToken string `env:"ADMIN_TOKEN,required" validate:"required"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM" validate:"required_if=Env production,required_if=Env staging"`
	AlertToEmail string `env:"ALERT_TO_EMAIL" validate:"required_if=Env production,required_if=Env staging"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
