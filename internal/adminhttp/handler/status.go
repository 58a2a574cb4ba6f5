package handler

import (
	"log/slog"
	"net/http"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/breaker"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/health"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
	"github.com/gin-gonic/gin"
)

// StatusHandler serves the operator-facing health/status surface that
// backs both "wp4odoo-cli status" and any external uptime check.
type StatusHandler struct {
	queue   repository.QueueStore
	global  *breaker.Global
	module  *breaker.Module
	checker *health.Checker
	logger  *slog.Logger
}

func NewStatusHandler(queue repository.QueueStore, global *breaker.Global, moduleBreaker *breaker.Module, checker *health.Checker, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{queue: queue, global: global, module: moduleBreaker, checker: checker, logger: logger.With("component", "status_handler")}
}

type statusResponse struct {
	GlobalBreaker string                      `json:"global_breaker"`
	Queue         repository.QueueStats       `json:"queue"`
	OpenModules   []domain.ModuleBreakerState `json:"open_modules"`
}

func (h *StatusHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	phase, err := h.global.Phase(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "read global breaker phase", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	stats, err := h.queue.Stats(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "read queue stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	openModules, err := h.module.ListOpen(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list open module breakers", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, statusResponse{
		GlobalBreaker: string(phase),
		Queue:         stats,
		OpenModules:   openModules,
	})
}

// Livez is the liveness probe — always up if the process can answer at all.
func (h *StatusHandler) Livez(c *gin.Context) {
	c.JSON(http.StatusOK, h.checker.Liveness(c.Request.Context()))
}

// Readyz pings every dependency and reports 503 if any are down.
func (h *StatusHandler) Readyz(c *gin.Context) {
	result := h.checker.Readiness(c.Request.Context())
	if result.Status != "up" {
		c.JSON(http.StatusServiceUnavailable, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
