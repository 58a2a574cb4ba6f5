package handler

import (
	"log/slog"
	"net/http"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/infrastructure/rediscache"
	"github.com/gin-gonic/gin"
)

// CacheHandler backs "wp4odoo-cli cache flush" over HTTP.
type CacheHandler struct {
	cache  rediscache.Cache
	logger *slog.Logger
}

func NewCacheHandler(cache rediscache.Cache, logger *slog.Logger) *CacheHandler {
	return &CacheHandler{cache: cache, logger: logger.With("component", "cache_handler")}
}

func (h *CacheHandler) Flush(c *gin.Context) {
	flusher, ok := h.cache.(rediscache.Flusher)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "configured cache backend does not support flush"})
		return
	}
	if err := flusher.FlushAll(c.Request.Context()); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "flush cache", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	c.Status(http.StatusNoContent)
}
