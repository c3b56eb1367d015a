package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/meschain/marketsync/internal/infrastructure/telemetry"
)

// Profiling attaches pyroscope labels (route, method and marketplace) to the
// handler goroutine. Unmatched routes and health checks are not labelled.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || route == "/health" || route == "/ready" {
			c.Next()
			return
		}
		labels := map[string]string{
			"route":       route,
			"method":      c.Request.Method,
			"marketplace": marketplaceParam(c),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
