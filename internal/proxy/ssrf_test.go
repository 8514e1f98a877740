package proxy

import (
	"context"
	"net/netip"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticLookup(addrs ...string) LookupFunc {
	return func(_ context.Context, _ string) ([]netip.Addr, error) {
		out := make([]netip.Addr, 0, len(addrs))
		for _, a := range addrs {
			out = append(out, netip.MustParseAddr(a))
		}
		return out, nil
	}
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := ParseTarget(raw)
	require.NoError(t, err)
	return u
}

func TestParseTarget(t *testing.T) {
	u := mustParse(t, "api.example.com/v1/chat")
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "api.example.com", u.Hostname())
	assert.Equal(t, "/v1/chat", u.Path)

	u = mustParse(t, "http://api.example.com")
	assert.Equal(t, "http", u.Scheme)

	// Leading slash from the route wildcard is tolerated.
	u = mustParse(t, "/api.example.com/v1")
	assert.Equal(t, "api.example.com", u.Hostname())

	_, err := ParseTarget("")
	assert.ErrorIs(t, err, ErrInvalidTargetURL)

	_, err = ParseTarget("ftp://api.example.com")
	assert.ErrorIs(t, err, ErrInvalidTargetURL)
}

func TestValidate_DomainAllowlist(t *testing.T) {
	v := NewTargetValidator([]string{"API.Example.com"})
	v.lookup = staticLookup("93.184.215.14")
	ctx := context.Background()

	assert.NoError(t, v.Validate(ctx, mustParse(t, "api.example.com/v1")))
	assert.NoError(t, v.Validate(ctx, mustParse(t, "API.EXAMPLE.COM/v1")), "allowlist match is case-insensitive")

	err := v.Validate(ctx, mustParse(t, "evil.example.com/v1"))
	assert.ErrorIs(t, err, ErrDomainNotAllowed)

	err = v.Validate(ctx, mustParse(t, "sub.api.example.com/v1"))
	assert.ErrorIs(t, err, ErrDomainNotAllowed, "allowlist entries are exact matches, not suffixes")
}

func TestValidate_EmptyAllowlistSkipsDomainCheck(t *testing.T) {
	v := NewTargetValidator(nil)
	v.lookup = staticLookup("93.184.215.14")
	assert.NoError(t, v.Validate(context.Background(), mustParse(t, "anything.example.com")))
}

func TestValidate_BlockedResolutions(t *testing.T) {
	blocked := []string{
		"127.0.0.1",
		"10.1.2.3",
		"172.16.0.9",
		"172.31.255.255",
		"192.168.1.1",
		"169.254.10.10",
		"0.0.0.0",
		"::1",
		"fc00::1",
		"fd12:3456::1",
		"fe80::1",
	}
	for _, ip := range blocked {
		v := NewTargetValidator([]string{"api.example.com"})
		v.lookup = staticLookup(ip)
		err := v.Validate(context.Background(), mustParse(t, "api.example.com/v1"))
		assert.ErrorIs(t, err, ErrPrivateIPBlocked, "ip %s must be blocked even for an allowlisted domain", ip)
	}
}

func TestValidate_PublicResolutionsPass(t *testing.T) {
	public := []string{"93.184.215.14", "172.32.0.1", "2606:2800:21f::1"}
	for _, ip := range public {
		v := NewTargetValidator(nil)
		v.lookup = staticLookup(ip)
		assert.NoError(t, v.Validate(context.Background(), mustParse(t, "api.example.com")), "ip %s should pass", ip)
	}
}

func TestValidate_AnyBlockedAddressRejects(t *testing.T) {
	v := NewTargetValidator(nil)
	v.lookup = staticLookup("93.184.215.14", "10.0.0.5")
	err := v.Validate(context.Background(), mustParse(t, "api.example.com"))
	assert.ErrorIs(t, err, ErrPrivateIPBlocked)
}

func TestValidate_LiteralIPScreened(t *testing.T) {
	v := NewTargetValidator(nil)
	v.lookup = func(context.Context, string) ([]netip.Addr, error) {
		t.Fatal("literal IPs must not hit DNS")
		return nil, nil
	}
	err := v.Validate(context.Background(), mustParse(t, "192.168.0.10/admin"))
	assert.ErrorIs(t, err, ErrPrivateIPBlocked)
}
