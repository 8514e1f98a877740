package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/zenith-gateway/zenith-gateway/internal/access"
	"github.com/zenith-gateway/zenith-gateway/internal/problems"
	"github.com/zenith-gateway/zenith-gateway/internal/telemetry"
)

// Access enforces the plan's allowed path patterns against the upstream
// request path. pathFn extracts the upstream path from the request, since the
// gateway's own route prefix is not part of the policy surface.
func Access(pathFn func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred, ok := CredentialFrom(c)
		if !ok {
			problems.Internal(c)
			return
		}

		if cred.Plan == nil || cred.Plan.Unrestricted() {
			c.Next()
			return
		}

		if !access.Allowed(cred.Plan.AllowedPaths, pathFn(c)) {
			telemetry.RejectionsTotal.WithLabelValues("forbidden").Inc()
			problems.Forbidden(c, "Path not permitted by plan")
			return
		}
		c.Next()
	}
}
