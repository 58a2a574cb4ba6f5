package middleware

import (
	"github.com/PaulArgoud/wp4odoo-sub008/internal/correlation"
	"github.com/gin-gonic/gin"
)

// CorrelationID injects a correlation ID into the request context and
// response header, preserving an incoming X-Correlation-ID so a call chain
// that starts outside this process still threads through the same id.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Correlation-ID")
		if id == "" {
			id = correlation.New()
		}
		ctx := correlation.WithID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Correlation-ID", id)
		c.Next()
	}
}
