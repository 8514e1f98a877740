// Package access decides whether a credential's plan permits a request path.
package access

import "strings"

// Allowed reports whether target is permitted by the plan's path patterns.
//
// A nil or empty pattern list means the plan is unrestricted. Patterns are
// either exact paths ("/v1/chat") or prefix patterns ending in "/*"
// ("/v1/*"). A prefix pattern matches the prefix itself and anything nested
// under it, but never a sibling that merely shares leading characters:
// "/v1/*" allows "/v1" and "/v1/chat" and rejects "/v1x".
func Allowed(patterns []string, target string) bool {
	if len(patterns) == 0 {
		return true
	}
	target = normalize(target)

	for _, p := range patterns {
		p = normalize(p)
		if p == "*" || p == "/*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			if target == prefix || strings.HasPrefix(target, prefix+"/") {
				return true
			}
			continue
		}
		if target == p {
			return true
		}
	}
	return false
}

func normalize(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") && p != "*" {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
