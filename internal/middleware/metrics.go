package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zenith-gateway/zenith-gateway/internal/telemetry"
)

// Metrics records request counters and latency for every request through the
// router. The target label is the upstream HOST extracted from the proxy
// path, never the full URL, to keep label cardinality bounded. Requests that
// never reach target extraction use the literal "none".
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		target := targetHost(c)
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.RequestsTotal.WithLabelValues(method, status, target).Inc()
		if c.Writer.Status() >= 400 {
			telemetry.ErrorsTotal.WithLabelValues(method, status, target).Inc()
		}
		telemetry.RequestDuration.WithLabelValues(target).Observe(time.Since(start).Seconds())
	}
}

// targetHost pulls the host portion out of the /proxy/*target wildcard.
func targetHost(c *gin.Context) string {
	raw := strings.TrimPrefix(c.Param("target"), "/")
	if raw == "" {
		return "none"
	}
	if idx := strings.Index(raw, "://"); idx >= 0 {
		raw = raw[idx+3:]
	}
	if idx := strings.IndexAny(raw, "/?"); idx >= 0 {
		raw = raw[:idx]
	}
	if raw == "" {
		return "none"
	}
	return strings.ToLower(raw)
}
