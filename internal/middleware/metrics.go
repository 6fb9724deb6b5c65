package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/opl-api/internal/service"
)

// Metrics records per-route request counts and latency. Observation happens
// in a defer so a handler panic still produces a sample for the request.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		defer func() {
			path := c.FullPath()
			if path == "" {
				path = c.Request.URL.Path
			}
			metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
		}()
		c.Next()
	}
}
