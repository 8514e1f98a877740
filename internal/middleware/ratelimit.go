package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zenith-gateway/zenith-gateway/internal/limiter"
	"github.com/zenith-gateway/zenith-gateway/internal/problems"
	"github.com/zenith-gateway/zenith-gateway/internal/telemetry"
)

// RateLimit enforces the credential's plan limits. The monthly quota is
// evaluated before the minute window inside the limiter, so a key over quota
// never consumes rate-limit budget. The client IP is passed through so the
// degraded-mode limiter can bucket by origin. Admitted requests carry
// X-RateLimit-Limit and X-RateLimit-Remaining headers reflecting the
// per-minute tier.
func RateLimit(l limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, ok := CredentialFrom(c)
		if !ok {
			problems.Internal(c)
			return
		}

		d := l.Allow(c.Request.Context(), cred, c.ClientIP())
		if !d.Allowed {
			telemetry.RejectionsTotal.WithLabelValues(d.Reason).Inc()
			if d.Reason == limiter.ReasonQuotaExceeded {
				problems.QuotaExceeded(c, "")
				return
			}
			retryAfter := int(math.Ceil(d.RetryAfter.Seconds()))
			problems.RateLimited(c, "", retryAfter)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Next()
	}
}
