package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// CredentialHeader carries the caller's gateway key and must never be
	// forwarded upstream.
	CredentialHeader = "X-Zenith-Key"

	defaultUpstreamTimeout = 30 * time.Second
	maxRetries             = 2
	retryBackoffStep       = 500 * time.Millisecond
)

var (
	ErrUpstreamTransport = errors.New("upstream transport failure")
	ErrUpstreamTimeout   = errors.New("upstream timed out")
)

// hopByHopHeaders are connection-scoped and stripped before forwarding, per
// RFC 9110 section 7.6.1. Headers named by the inbound Connection header are
// stripped as well.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Forwarder sends validated requests upstream, retrying idempotent methods
// on transport failure.
type Forwarder struct {
	validator *TargetValidator
	client    *http.Client
	logger    *slog.Logger
	sleep     func(time.Duration)
}

func NewForwarder(validator *TargetValidator, timeout time.Duration, logger *slog.Logger) *Forwarder {
	if timeout <= 0 {
		timeout = defaultUpstreamTimeout
	}
	return &Forwarder{
		validator: validator,
		client: &http.Client{
			Timeout: timeout,
			// The caller talks to the gateway, not the upstream. Redirect
			// responses pass through untouched so the caller decides.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
		sleep:  time.Sleep,
	}
}

// Forward validates rawTarget and relays the inbound request to it. The
// returned response body is unread; the caller streams and closes it.
func (f *Forwarder) Forward(ctx context.Context, rawTarget string, inbound *http.Request) (*http.Response, error) {
	target, err := ParseTarget(rawTarget)
	if err != nil {
		return nil, err
	}
	if err := f.validator.Validate(ctx, target); err != nil {
		return nil, err
	}

	var body io.Reader
	if inbound.Method != http.MethodGet && inbound.Method != http.MethodHead && inbound.Body != nil {
		body = inbound.Body
	}

	req, err := http.NewRequestWithContext(ctx, inbound.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTargetURL, err)
	}
	req.Header = sanitizeHeaders(inbound.Header)
	if body != nil {
		req.ContentLength = inbound.ContentLength
	}

	return f.send(req, target)
}

// send issues the request, retrying only idempotent methods and only on
// transport errors. An HTTP status of any kind is a success at this layer.
func (f *Forwarder) send(req *http.Request, target *url.URL) (*http.Response, error) {
	retryable := req.Method == http.MethodGet || req.Method == http.MethodHead

	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := f.client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !retryable || attempt >= maxRetries {
			break
		}
		if req.Context().Err() != nil {
			break
		}

		backoff := time.Duration(attempt+1) * retryBackoffStep
		f.logger.Warn("upstream attempt failed, retrying",
			"target", target.Host,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err)
		f.sleep(backoff)
	}

	if isTimeout(lastErr) {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamTimeout, lastErr)
	}
	return nil, fmt.Errorf("%w: %v", ErrUpstreamTransport, lastErr)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr interface{ Timeout() bool }
	return errors.As(err, &nerr) && nerr.Timeout()
}

// sanitizeHeaders copies inbound headers minus hop-by-hop headers, the Host
// header, and the gateway credential. Multi-value headers keep all values.
func sanitizeHeaders(in http.Header) http.Header {
	out := make(http.Header, len(in))
	for key, values := range in {
		out[key] = append([]string(nil), values...)
	}

	// Connection may name additional per-hop headers.
	for _, value := range in.Values("Connection") {
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}
	for _, name := range hopByHopHeaders {
		out.Del(name)
	}
	out.Del("Host")
	out.Del(CredentialHeader)
	return out
}
