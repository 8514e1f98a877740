package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zenith-gateway/zenith-gateway/internal/db/models"
	"github.com/zenith-gateway/zenith-gateway/internal/usage"
)

// Usage submits one usage record per authenticated request after the response
// status is determined. If the client disconnected before any status was
// written, no record is submitted. Submission never blocks the handler.
func Usage(recorder *usage.Recorder, pathFn func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		cred, ok := CredentialFrom(c)
		if !ok {
			return
		}
		if c.Request.Context().Err() != nil && !c.Writer.Written() {
			return
		}

		recorder.Submit(models.UsageLog{
			KeyID:      cred.ID,
			Endpoint:   pathFn(c),
			Method:     c.Request.Method,
			StatusCode: c.Writer.Status(),
			LatencyMS:  time.Since(start).Milliseconds(),
			Timestamp:  time.Now().UTC(),
		})
	}
}
