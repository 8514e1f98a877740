package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/zenith-gateway/zenith-gateway/internal/problems"
	"github.com/zenith-gateway/zenith-gateway/internal/proxy"
	"github.com/zenith-gateway/zenith-gateway/internal/telemetry"
)

// proxyHandler forwards the admitted request upstream and streams the
// response back. Upstream HTTP statuses pass through verbatim; only gateway
// failures are translated into problem responses.
func proxyHandler(f *proxy.Forwarder, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		target := c.Param("target")

		resp, err := f.Forward(c.Request.Context(), target, c.Request)
		if err != nil {
			writeForwardProblem(c, target, err, logger)
			return
		}
		defer resp.Body.Close()

		copyResponseHeaders(c.Writer.Header(), resp.Header)
		c.Status(resp.StatusCode)
		if _, err := io.Copy(c.Writer, resp.Body); err != nil {
			// Mid-stream failure: the status line is already gone, so all
			// that is left is to log and let the connection drop.
			logger.Warn("response stream interrupted", "target", target, "error", err)
		}
	}
}

func writeForwardProblem(c *gin.Context, target string, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, proxy.ErrInvalidTargetURL):
		telemetry.RejectionsTotal.WithLabelValues("ssrf-blocked").Inc()
		problems.BadRequest(c, "Target URL is invalid")
	case errors.Is(err, proxy.ErrDomainNotAllowed):
		telemetry.RejectionsTotal.WithLabelValues("ssrf-blocked").Inc()
		problems.Forbidden(c, "Target domain is not allowed")
	case errors.Is(err, proxy.ErrPrivateIPBlocked):
		telemetry.RejectionsTotal.WithLabelValues("ssrf-blocked").Inc()
		problems.Forbidden(c, "Target resolves to a blocked address")
	case errors.Is(err, proxy.ErrUpstreamTimeout):
		logger.Warn("upstream timed out", "target", target, "error", err)
		problems.GatewayTimeout(c, "")
	case errors.Is(err, proxy.ErrUpstreamTransport):
		logger.Warn("upstream unreachable", "target", target, "error", err)
		problems.BadGateway(c, "")
	default:
		logger.Error("forward failed", "target", target, "error", err)
		problems.Internal(c)
	}
}

// copyResponseHeaders relays upstream headers minus hop-by-hop ones, which
// describe the gateway-to-upstream connection, not ours to the client.
func copyResponseHeaders(dst, src http.Header) {
	hopByHop := map[string]struct{}{
		"Connection":        {},
		"Keep-Alive":        {},
		"Transfer-Encoding": {},
		"Upgrade":           {},
		"Trailer":           {},
		"Te":                {},
	}
	for _, v := range src.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				hopByHop[http.CanonicalHeaderKey(name)] = struct{}{}
			}
		}
	}
	for key, values := range src {
		if _, skip := hopByHop[key]; skip {
			continue
		}
		dst[key] = append([]string(nil), values...)
	}
}
