package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/khurram-Shahid09/CourseMat/internal/service"
)

// Metrics records duration and status for every request. Route templates
// (":id" rather than the concrete value) keep the label cardinality bounded.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, status, duration)
	}
}
