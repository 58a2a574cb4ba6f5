// Package adminhttp is the operator HTTP surface: read-only status
// plus the same mutating operations the CLI exposes, gated behind a single
// shared bearer token. It is deliberately not end-user facing — there is no
// tenant/auth model in this engine beyond "trusted operator holds the token".
package adminhttp

import (
	"log/slog"

	"github.com/PaulArgoud/wp4odoo-sub008/internal/adminhttp/handler"
	"github.com/PaulArgoud/wp4odoo-sub008/internal/adminhttp/middleware"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

// Handlers bundles every handler the router wires up; cmd/worker/main.go
// constructs one of these from the same services the scheduler runs.
type Handlers struct {
	Status    *handler.StatusHandler
	Queue     *handler.QueueHandler
	Module    *handler.ModuleHandler
	Reconcile *handler.ReconcileHandler
	Cache     *handler.CacheHandler
	Enqueue   *handler.EnqueueHandler
}

// NewRouter builds the gin.Engine serving the admin API. adminToken gates
// every route except the liveness/readiness probes, which a load balancer
// needs to reach unauthenticated.
func NewRouter(logger *slog.Logger, h Handlers, adminToken string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.GET("/livez", h.Status.Livez)
	r.GET("/readyz", h.Status.Readyz)

	admin := r.Group("/", middleware.Auth(adminToken))

	admin.GET("/status", h.Status.Status)

	queue := admin.Group("/queue")
	queue.GET("/stats", h.Queue.Stats)
	queue.GET("", h.Queue.List)
	queue.POST("/:id/retry", h.Queue.Retry)
	queue.POST("/:id/cancel", h.Queue.Cancel)
	queue.POST("/cleanup", h.Queue.Cleanup)

	modules := admin.Group("/modules")
	modules.GET("", h.Module.List)
	modules.POST("/:id/enable", h.Module.Enable)
	modules.POST("/:id/disable", h.Module.Disable)

	admin.POST("/reconcile/:module/:entity_type", h.Reconcile.Run)
	admin.POST("/cache/flush", h.Cache.Flush)

	enqueue := admin.Group("/enqueue")
	enqueue.POST("/push", h.Enqueue.Push)
	enqueue.POST("/pull", h.Enqueue.Pull)

	return r
}
