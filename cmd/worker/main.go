// Command worker is the long-running daemon: scheduler loop, reaper,
// reconciler sweeper, metrics server and admin HTTP surface, all wired from
// one config and shut down together on SIGTERM/SIGINT.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/config"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/adminhttp"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/adminhttp/handler"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/batch"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/breaker"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/email"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/enqueuer"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/health"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/postgres"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
	ctxlog "github.com/PaulArgoud/wp4odoo-sub008/internal/log"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/metrics"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/moduleregistry"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/notifier"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/orchestrator"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/ratelimit"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/reconciler"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/rpc"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/scheduler"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/settings"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	logger.Info("db connected")

	metrics.Register()
	metrics.WorkerStartTime.Set(float64(time.Now().Unix()))

	var cache rediscache.Cache
	if cfg.RedisAddr != "" {
		rc, err := rediscache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			stop()
			log.Fatalf("redis: %v", err)
		}
		cache = rc
		logger.Info("redis connected", "addr", cfg.RedisAddr)
	} else {
		cache = rediscache.NewLocalCache()
		logger.Warn("no REDIS_ADDR configured, falling back to in-process cache (breaker/cooldown state is not cluster-aware)")
	}

	queueRepo := postgres.NewQueueRepository(pool)
	attemptRepo := postgres.NewAttemptRepository(pool)
	mappingRepo := postgres.NewMappingRepository(pool)
	settingsRepo := postgres.NewSettingsRepository(pool)
	breakerRepo := postgres.NewBreakerRepository(pool)

	settingsAccessor, err := settings.New(ctx, settingsRepo, logger)
	if err != nil {
		stop()
		log.Fatalf("load settings: %v", err)
	}
	go settingsAccessor.StartAutoRefresh(ctx)

	rpcClient := rpc.NewJSONRPCClient(cfg.OdooURL, cfg.OdooDB, cfg.OdooPassword, cfg.OdooUID, logger)
	sender := email.NewSender(cfg.Env, cfg.ResendAPIKey, cfg.ResendFrom, logger)

	globalBreaker := breaker.NewGlobal(breakerRepo, cache, settingsAccessor.Get, logger)
	moduleBreaker := breaker.NewModule(breakerRepo, cache, settingsAccessor.Get, logger)
	limiter := ratelimit.NewTokenBucketLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)
	failureNotifier := notifier.New(sender, cache, settingsAccessor.Get, cfg.AlertToEmail, logger)

	registry := moduleregistry.New()

	workerID := fmt.Sprintf("worker-%s", uuid.NewString())

	orch := orchestrator.New(pool, mappingRepo, rpcClient, registry.Resolve, logger)
	batchProc := batch.New(queueRepo, attemptRepo, mappingRepo, rpcClient, registry.Resolve, orch, pool, logger)
	sched := scheduler.New(
		cfg.BlogID, pool, queueRepo, attemptRepo, orch, batchProc, registry,
		globalBreaker, moduleBreaker, limiter, failureNotifier, settingsAccessor.Get,
		workerID, logger,
	)

	reaper := scheduler.NewReaper(queueRepo, logger, time.Duration(cfg.ReaperIntervalSec)*time.Second, func() time.Duration {
		return time.Duration(settingsAccessor.Get().StaleLeaseTimeoutSec) * time.Second
	})
	go reaper.Start(ctx)

	rec := reconciler.New(mappingRepo, rpcClient, registry.Resolve, logger)
	sweepTargets := make([]reconciler.Target, 0, len(registry.List()))
	for _, m := range registry.List() {
		sweepTargets = append(sweepTargets, reconciler.Target{Module: m.ID, EntityType: m.ID})
	}
	sweeper := reconciler.NewSweeper(rec, sweepTargets, cfg.ReconcileCron, logger)
	go sweeper.Start(ctx)

	enq := enqueuer.New(queueRepo, cache, sender, cfg.AlertToEmail, func() int { return 5 }, logger)

	go runSchedulerLoop(ctx, sched, time.Duration(cfg.PollIntervalSec)*time.Second, logger)

	var cachePinger health.CachePinger
	if cfg.RedisAddr != "" {
		cachePinger = cache
	}
	checker := health.NewChecker(pool, cachePinger, logger, prometheus.DefaultRegisterer)

	metricsSrv := metrics.NewServer(":" + cfg.MetricsPort)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	adminRouter := adminhttp.NewRouter(logger, adminhttp.Handlers{
		Status:    handler.NewStatusHandler(queueRepo, globalBreaker, moduleBreaker, checker, logger),
		Queue:     handler.NewQueueHandler(queueRepo, logger),
		Module:    handler.NewModuleHandler(registry),
		Reconcile: handler.NewReconcileHandler(rec, logger),
		Cache:     handler.NewCacheHandler(cache, logger),
		Enqueue:   handler.NewEnqueueHandler(enq, logger),
	}, cfg.AdminToken)
	adminSrv := &http.Server{Addr: ":" + cfg.AdminPort, Handler: adminRouter}
	go func() {
		logger.Info("admin server started", "port", cfg.AdminPort)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	metrics.WorkerShutdownsTotal.Inc()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	if err := adminSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown", "error", err)
	}

	logger.Info("worker shut down")
}

// runSchedulerLoop drives every registered module once per poll interval.
// A single Scheduler.Run("") call already fans out across modules claimed
// in one Claim batch, so the loop itself stays simple.
func runSchedulerLoop(ctx context.Context, sched *scheduler.Scheduler, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler loop shut down")
			return
		case <-ticker.C:
			report, err := sched.Run(ctx, "")
			if err != nil {
				logger.Error("scheduler run failed", "error", err)
				continue
			}
			if report.Processed > 0 {
				logger.Info("scheduler run", "processed", report.Processed, "successes", report.Successes, "failures", report.Failures, "iterations", report.Iterations)
			}
		}
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{Level: level, TimeFormat: time.Kitchen})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
