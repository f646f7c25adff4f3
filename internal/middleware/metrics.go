package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marketlane/backend/internal/metrics"
)

// MetricsMiddleware records request latency per route. The route template
// (not the raw path) is used as the label to keep cardinality bounded.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
