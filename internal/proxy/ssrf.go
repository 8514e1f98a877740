// Package proxy validates upstream targets and forwards requests to them.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

var (
	ErrInvalidTargetURL = errors.New("invalid target url")
	ErrDomainNotAllowed = errors.New("domain not allowed")
	ErrPrivateIPBlocked = errors.New("target resolves to a blocked address")
)

// LookupFunc resolves a hostname to IP addresses. Tests swap it out.
type LookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

// TargetValidator enforces the SSRF policy: scheme restriction, optional
// domain allowlisting, and mandatory address screening of what the hostname
// actually resolves to. The resolution step runs even for allowlisted
// domains, since an allowlisted name can still point at an internal address.
type TargetValidator struct {
	allowed map[string]struct{}
	lookup  LookupFunc
}

func NewTargetValidator(allowedDomains []string) *TargetValidator {
	v := &TargetValidator{lookup: defaultLookup}
	if len(allowedDomains) > 0 {
		v.allowed = make(map[string]struct{}, len(allowedDomains))
		for _, d := range allowedDomains {
			v.allowed[strings.ToLower(strings.TrimSpace(d))] = struct{}{}
		}
	}
	return v
}

func defaultLookup(ctx context.Context, host string) ([]netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
}

// ParseTarget turns the raw path remainder into an absolute upstream URL.
// A missing scheme defaults to https. Only http and https are accepted.
func ParseTarget(raw string) (*url.URL, error) {
	raw = strings.TrimPrefix(raw, "/")
	if raw == "" {
		return nil, fmt.Errorf("%w: empty target", ErrInvalidTargetURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTargetURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q not supported", ErrInvalidTargetURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidTargetURL)
	}
	return u, nil
}

// Validate checks u against the allowlist and resolves its hostname,
// rejecting loopback, private, and link-local addresses for both IPv4 and
// IPv6. Every resolved address must pass for the target to be accepted.
func (v *TargetValidator) Validate(ctx context.Context, u *url.URL) error {
	host := strings.ToLower(u.Hostname())

	if v.allowed != nil {
		if _, ok := v.allowed[host]; !ok {
			return fmt.Errorf("%w: %s", ErrDomainNotAllowed, host)
		}
	}

	// Literal IPs skip DNS but not the address screen.
	if addr, err := netip.ParseAddr(host); err == nil {
		if blockedAddr(addr) {
			return fmt.Errorf("%w: %s", ErrPrivateIPBlocked, addr)
		}
		return nil
	}

	addrs, err := v.lookup(ctx, host)
	if err != nil || len(addrs) == 0 {
		return fmt.Errorf("%w: cannot resolve %s", ErrInvalidTargetURL, host)
	}
	for _, addr := range addrs {
		if blockedAddr(addr) {
			return fmt.Errorf("%w: %s resolves to %s", ErrPrivateIPBlocked, host, addr)
		}
	}
	return nil
}

func blockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
