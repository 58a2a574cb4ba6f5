package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/repository"
	"github.com/gin-gonic/gin"
)

const (
	errInternalServer = "Internal server error"
	errInvalidJobID   = "Invalid job id"
)

// QueueHandler mirrors the "wp4odoo-cli queue" command family over HTTP so
// a dashboard can drive the same operations the CLI does.
type QueueHandler struct {
	store  repository.QueueStore
	logger *slog.Logger
}

func NewQueueHandler(store repository.QueueStore, logger *slog.Logger) *QueueHandler {
	return &QueueHandler{store: store, logger: logger.With("component", "queue_handler")}
}

func (h *QueueHandler) Stats(c *gin.Context) {
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "read queue stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *QueueHandler) List(c *gin.Context) {
	status := domain.Status(c.DefaultQuery("status", string(domain.StatusPending)))
	module := c.Query("module")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 {
		limit = 50
	}

	jobs, err := h.store.ListByStatus(c.Request.Context(), status, module, limit, offset)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "list jobs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (h *QueueHandler) Retry(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidJobID})
		return
	}
	if err := h.store.RetryFailed(c.Request.Context(), id); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "retry job", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *QueueHandler) Cancel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidJobID})
		return
	}
	if err := h.store.Cancel(c.Request.Context(), id); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "cancel job", "job_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *QueueHandler) Cleanup(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days <= 0 {
		days = 30
	}
	removed, err := h.store.Cleanup(c.Request.Context(), time.Now().AddDate(0, 0, -days))
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "cleanup queue", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
