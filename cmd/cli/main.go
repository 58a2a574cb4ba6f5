// Command wp4odoo-cli is the operator command-line surface: it
// wires the same services the worker daemon runs and dispatches one-shot
// subcommands against them.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/config"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/batch"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/breaker"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/cli"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/email"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/postgres"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/moduleregistry"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/notifier"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/orchestrator"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/ratelimit"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/reconciler"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/rpc"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/scheduler"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/settings"
	"github.com/google/uuid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	var cache rediscache.Cache
	if cfg.RedisAddr != "" {
		rc, err := rediscache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		cache = rc
	} else {
		cache = rediscache.NewLocalCache()
	}

	queueRepo := postgres.NewQueueRepository(pool)
	attemptRepo := postgres.NewAttemptRepository(pool)
	mappingRepo := postgres.NewMappingRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)
	breakerRepo := postgres.NewBreakerRepository(pool)

	settingsAccessor, err := settings.New(ctx, settingsRepo, logger)
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}

	rpcClient := rpc.NewJSONRPCClient(cfg.OdooURL, cfg.OdooDB, cfg.OdooPassword, cfg.OdooUID, logger)
	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)

	globalBreaker := breaker.NewGlobal(breakerRepo, cache, settingsAccessor.Get, logger)
	moduleBreaker := breaker.NewModule(breakerRepo, cache, settingsAccessor.Get, logger)
	limiter := ratelimit.NewTokenBucketLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)
	failureNotifier := notifier.New(sender, cache, settingsAccessor.Get, cfg.AlertToEmail, logger)

	registry := moduleregistry.New()
	workerID := fmt.Sprintf("cli-%s", uuid.NewString())

	orch := orchestrator.New(pool, mappingRepo, rpcClient, registry.Resolve, logger)
	batchProc := batch.New(queueRepo, attemptRepo, mappingRepo, rpcClient, registry.Resolve, orch, pool, logger)
	sched := scheduler.New(
		cfg.BlogID, pool, queueRepo, attemptRepo, orch, batchProc, registry,
		globalBreaker, moduleBreaker, limiter, failureNotifier, settingsAccessor.Get,
		workerID, logger,
	)
	rec := reconciler.New(mappingRepo, rpcClient, registry.Resolve, logger)

	c := &cli.CLI{
		Queue:      queueRepo,
		Mappings:   mappingRepo,
		Registry:   registry,
		Reconciler: rec,
		Scheduler:  sched,
		Global:     globalBreaker,
		Module:     moduleBreaker,
		Cache:      cache,
		RPC:        rpcClient,
		Out:        os.Stdout,
	}

	if err := c.Run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
