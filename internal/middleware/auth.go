// Package middleware provides the Gin middleware chain for the gateway's
// admission pipeline. The proxy route runs, in order: Auth (credential
// resolution), RateLimit (quota then minute window), Access (path policy),
// and Usage (latency capture). Router-wide middleware (Recovery, RequestID,
// Metrics) is registered in internal/api/router.go.
package middleware

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/zenith-gateway/zenith-gateway/internal/credentials"
	"github.com/zenith-gateway/zenith-gateway/internal/db/models"
	"github.com/zenith-gateway/zenith-gateway/internal/problems"
	"github.com/zenith-gateway/zenith-gateway/internal/proxy"
	"github.com/zenith-gateway/zenith-gateway/internal/telemetry"
)

// CredentialKey is the gin.Context key holding the resolved *models.Credential.
const CredentialKey = "credential"

// Auth resolves the X-Zenith-Key header into a credential. Missing and
// unknown keys both produce 401; a resolver outage produces 500 rather than
// admitting unauthenticated traffic.
func Auth(resolver *credentials.Resolver, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawKey := c.GetHeader(proxy.CredentialHeader)

		cred, err := resolver.Resolve(c.Request.Context(), rawKey)
		if err != nil {
			switch {
			case errors.Is(err, credentials.ErrMissingKey):
				telemetry.RejectionsTotal.WithLabelValues("unauthorized").Inc()
				problems.Unauthorized(c, "Missing "+proxy.CredentialHeader+" header")
			case errors.Is(err, credentials.ErrInvalidKey):
				telemetry.RejectionsTotal.WithLabelValues("unauthorized").Inc()
				problems.Unauthorized(c, "Invalid or inactive API key")
			default:
				logger.Error("credential resolution failed", "error", err)
				problems.Internal(c)
			}
			return
		}

		c.Set(CredentialKey, cred)
		c.Next()
	}
}

// CredentialFrom returns the credential stored by Auth.
func CredentialFrom(c *gin.Context) (*models.Credential, bool) {
	v, ok := c.Get(CredentialKey)
	if !ok {
		return nil, false
	}
	cred, ok := v.(*models.Credential)
	return cred, ok
}
