package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/reconciler"
	"github.com/gin-gonic/gin"
)

// ReconcileHandler exposes an on-demand trigger for the same orphan sweep
// the periodic reconciler.Sweeper runs on a cron.
type ReconcileHandler struct {
	reconciler *reconciler.Reconciler
	logger     *slog.Logger
}

func NewReconcileHandler(r *reconciler.Reconciler, logger *slog.Logger) *ReconcileHandler {
	return &ReconcileHandler{reconciler: r, logger: logger.With("component", "reconcile_handler")}
}

func (h *ReconcileHandler) Run(c *gin.Context) {
	module := c.Param("module")
	entityType := c.Param("entity_type")
	fix, _ := strconv.ParseBool(c.DefaultQuery("fix", "false"))

	report, err := h.reconciler.Reconcile(c.Request.Context(), module, entityType, fix)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "reconcile", "module", module, "entity_type", entityType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.JSON(http.StatusOK, report)
}
