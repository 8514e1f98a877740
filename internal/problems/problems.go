// Package problems renders RFC 7807 Problem Details error responses
// (application/problem+json) for the gateway. Every client-facing rejection
// goes through this package so the `type` slug is stable and programmatically
// branchable. Internal failures are always normalized to the generic
// internal-server-error problem — raw error text never reaches the client.
package problems

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// TypePrefix is the base URI for problem type slugs.
const TypePrefix = "https://zenith.io/probs/"

// ContentType is the media type for Problem Details bodies.
const ContentType = "application/problem+json"

// Problem is an RFC 7807 response body. Instance is always the request path.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Abort writes a Problem Details response and stops the middleware chain.
func Abort(c *gin.Context, status int, slug, title, detail string) {
	p := Problem{
		Type:     TypePrefix + slug,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request.URL.Path,
	}
	c.Header("Content-Type", ContentType)
	c.AbortWithStatusJSON(status, p)
}

// BadRequest writes a 400 bad-request problem.
func BadRequest(c *gin.Context, detail string) {
	Abort(c, 400, "bad-request", "Bad Request", detail)
}

// Unauthorized writes a 401 unauthorized problem. Covers missing keys and
// invalid-or-inactive keys alike — the two must be indistinguishable to the
// caller beyond the detail string.
func Unauthorized(c *gin.Context, detail string) {
	if detail == "" {
		detail = "Authentication credentials required or invalid"
	}
	Abort(c, 401, "unauthorized", "Unauthorized", detail)
}

// Forbidden writes a 403 forbidden problem.
func Forbidden(c *gin.Context, detail string) {
	if detail == "" {
		detail = "Access denied"
	}
	Abort(c, 403, "forbidden", "Forbidden", detail)
}

// RateLimited writes a 429 rate-limited problem. retryAfter, when positive,
// is surfaced as a Retry-After header (seconds).
func RateLimited(c *gin.Context, detail string, retryAfter int) {
	if detail == "" {
		detail = "Rate limit exceeded"
	}
	if retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(retryAfter))
	}
	Abort(c, 429, "rate-limited", "Rate Limit Exceeded", detail)
}

// QuotaExceeded writes a 429 quota-exceeded problem.
func QuotaExceeded(c *gin.Context, detail string) {
	if detail == "" {
		detail = "Monthly quota exceeded"
	}
	Abort(c, 429, "quota-exceeded", "Quota Exceeded", detail)
}

// BadGateway writes a 502 bad-gateway problem.
func BadGateway(c *gin.Context, detail string) {
	if detail == "" {
		detail = "Upstream service failed"
	}
	Abort(c, 502, "bad-gateway", "Bad Gateway", detail)
}

// GatewayTimeout writes a 504 gateway-timeout problem.
func GatewayTimeout(c *gin.Context, detail string) {
	if detail == "" {
		detail = "Upstream service timed out"
	}
	Abort(c, 504, "gateway-timeout", "Gateway Timeout", detail)
}

// Internal writes a 500 internal-server-error problem with a generic detail.
// The underlying error is intentionally not included.
func Internal(c *gin.Context) {
	Abort(c, 500, "internal-server-error", "Internal Server Error", "An unexpected error occurred")
}
