package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/domain"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/enqueuer"
	"github.com/gin-gonic/gin"
)

// EnqueueHandler is the producer API's HTTP boundary: the WordPress side lives outside this module entirely, so a
// webhook-style POST is how it drives EnqueuePush/EnqueuePull in practice.
type EnqueueHandler struct {
	enqueuer *enqueuer.Enqueuer
	logger   *slog.Logger
}

func NewEnqueueHandler(e *enqueuer.Enqueuer, logger *slog.Logger) *EnqueueHandler {
	return &EnqueueHandler{enqueuer: e, logger: logger.With("component", "enqueue_handler")}
}

type enqueuePushRequest struct {
	Module     string          `json:"module" binding:"required"`
	EntityType string          `json:"entity_type" binding:"required"`
	LocalID    uint64          `json:"local_id" binding:"required"`
	Action     domain.Action   `json:"action" binding:"required,oneof=create update delete"`
	Payload    json.RawMessage `json:"payload"`
	Priority   uint8           `json:"priority"`
}

func (h *EnqueueHandler) Push(c *gin.Context) {
	var req enqueuePushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	priority := req.Priority
	if priority == 0 {
		priority = 5
	}
	job, err := h.enqueuer.EnqueuePush(c.Request.Context(), req.Module, req.EntityType, req.LocalID, req.Action, []byte(req.Payload), priority)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "enqueue push", "module", req.Module, "entity_type", req.EntityType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusAccepted, job)
}

type enqueuePullRequest struct {
	Module     string        `json:"module" binding:"required"`
	EntityType string        `json:"entity_type" binding:"required"`
	RemoteID   uint64        `json:"remote_id" binding:"required"`
	Action     domain.Action `json:"action" binding:"required,oneof=create update delete"`
	Priority   uint8         `json:"priority"`
}

func (h *EnqueueHandler) Pull(c *gin.Context) {
	var req enqueuePullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	priority := req.Priority
	if priority == 0 {
		priority = 5
	}
	job, err := h.enqueuer.EnqueuePull(c.Request.Context(), req.Module, req.EntityType, req.RemoteID, req.Action, priority)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "enqueue pull", "module", req.Module, "entity_type", req.EntityType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusAccepted, job)
}
