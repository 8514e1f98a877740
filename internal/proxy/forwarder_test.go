package proxy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyTransport fails the first n attempts with a transport error, then
// delegates to an inner response.
type flakyTransport struct {
	failures int
	attempts int
	resp     func() *http.Response
}

func (ft *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ft.attempts++
	if ft.attempts <= ft.failures {
		return nil, errors.New("connection refused")
	}
	return ft.resp(), nil
}

func okResponse() *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader("ok")),
	}
}

func newTestForwarder(t *testing.T, rt http.RoundTripper) *Forwarder {
	t.Helper()
	v := NewTargetValidator(nil)
	v.lookup = func(context.Context, string) ([]netip.Addr, error) {
		return []netip.Addr{netip.MustParseAddr("93.184.215.14")}, nil
	}
	f := NewForwarder(v, time.Second, slog.Default())
	f.client.Transport = rt
	f.sleep = func(time.Duration) {}
	return f
}

func TestForward_GETRetriedThroughTransportFailures(t *testing.T) {
	ft := &flakyTransport{failures: 2, resp: okResponse}
	f := newTestForwarder(t, ft)

	inbound := httptest.NewRequest(http.MethodGet, "/proxy/api.example.com/v1", nil)
	resp, err := f.Forward(context.Background(), "api.example.com/v1", inbound)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, ft.attempts)
}

func TestForward_GETGivesUpAfterTwoRetries(t *testing.T) {
	ft := &flakyTransport{failures: 10, resp: okResponse}
	f := newTestForwarder(t, ft)

	inbound := httptest.NewRequest(http.MethodGet, "/proxy/api.example.com/v1", nil)
	_, err := f.Forward(context.Background(), "api.example.com/v1", inbound)
	assert.ErrorIs(t, err, ErrUpstreamTransport)
	assert.Equal(t, 3, ft.attempts, "one initial attempt plus two retries")
}

func TestForward_POSTNeverRetried(t *testing.T) {
	ft := &flakyTransport{failures: 10, resp: okResponse}
	f := newTestForwarder(t, ft)

	inbound := httptest.NewRequest(http.MethodPost, "/proxy/api.example.com/v1", strings.NewReader(`{"x":1}`))
	_, err := f.Forward(context.Background(), "api.example.com/v1", inbound)
	assert.ErrorIs(t, err, ErrUpstreamTransport)
	assert.Equal(t, 1, ft.attempts)
}

func TestForward_ErrorStatusIsNotRetried(t *testing.T) {
	ft := &flakyTransport{failures: 0, resp: func() *http.Response {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader("boom")),
		}
	}}
	f := newTestForwarder(t, ft)

	inbound := httptest.NewRequest(http.MethodGet, "/proxy/api.example.com/v1", nil)
	resp, err := f.Forward(context.Background(), "api.example.com/v1", inbound)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 1, ft.attempts)
}

type captureTransport struct {
	req *http.Request
}

func (ct *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ct.req = req
	return okResponse(), nil
}

func TestForward_HeaderSanitization(t *testing.T) {
	ct := &captureTransport{}
	f := newTestForwarder(t, ct)

	inbound := httptest.NewRequest(http.MethodGet, "/proxy/api.example.com/v1", nil)
	inbound.Header.Set(CredentialHeader, "znt_secret")
	inbound.Header.Set("Connection", "close, X-Internal-Trace")
	inbound.Header.Set("X-Internal-Trace", "abc")
	inbound.Header.Set("Keep-Alive", "timeout=5")
	inbound.Header.Set("Transfer-Encoding", "chunked")
	inbound.Header.Set("Proxy-Authorization", "Basic xyz")
	inbound.Header.Set("Upgrade", "websocket")
	inbound.Header.Set("Authorization", "Bearer upstream-token")
	inbound.Header.Add("Accept", "application/json")
	inbound.Header.Add("Accept", "text/plain")

	resp, err := f.Forward(context.Background(), "api.example.com/v1", inbound)
	require.NoError(t, err)
	defer resp.Body.Close()

	sent := ct.req.Header
	for _, name := range []string{
		CredentialHeader, "Connection", "X-Internal-Trace", "Keep-Alive",
		"Transfer-Encoding", "Proxy-Authorization", "Upgrade",
	} {
		assert.Empty(t, sent.Values(name), "%s must be stripped", name)
	}
	assert.Equal(t, "Bearer upstream-token", sent.Get("Authorization"))
	assert.Equal(t, []string{"application/json", "text/plain"}, sent.Values("Accept"))
}

func TestForward_GETBodyDropped(t *testing.T) {
	ct := &captureTransport{}
	f := newTestForwarder(t, ct)

	inbound := httptest.NewRequest(http.MethodGet, "/proxy/api.example.com/v1", strings.NewReader("ignored"))
	resp, err := f.Forward(context.Background(), "api.example.com/v1", inbound)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Nil(t, ct.req.Body)
}

func TestForward_POSTBodyStreamed(t *testing.T) {
	ct := &captureTransport{}
	f := newTestForwarder(t, ct)

	inbound := httptest.NewRequest(http.MethodPost, "/proxy/api.example.com/v1", strings.NewReader(`{"x":1}`))
	resp, err := f.Forward(context.Background(), "api.example.com/v1", inbound)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NotNil(t, ct.req.Body)
	got, err := io.ReadAll(ct.req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(got))
}

func TestForward_SSRFRejectionIsTerminal(t *testing.T) {
	ft := &flakyTransport{failures: 0, resp: okResponse}
	v := NewTargetValidator([]string{"api.example.com"})
	v.lookup = func(context.Context, string) ([]netip.Addr, error) {
		return []netip.Addr{netip.MustParseAddr("10.0.0.9")}, nil
	}
	f := NewForwarder(v, time.Second, slog.Default())
	f.client.Transport = ft

	inbound := httptest.NewRequest(http.MethodGet, "/proxy/api.example.com/v1", nil)
	_, err := f.Forward(context.Background(), "api.example.com/v1", inbound)
	assert.ErrorIs(t, err, ErrPrivateIPBlocked)
	assert.Zero(t, ft.attempts, "blocked targets are never attempted")
}
