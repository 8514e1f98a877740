// Package cache provides the TTL cache used for credential resolution. The
// cache is deliberately dumb — opaque bytes in, opaque bytes out — so the
// resolver owns serialization and the cache can be swapped between the shared
// Redis implementation and the in-process one without touching resolution
// logic. Entries expire purely by TTL; there is no invalidation channel, so a
// revoked credential may be honoured for up to one TTL window.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented TTL cache. Implementations must be safe for
// concurrent use. Get returns (nil, false, nil) on a miss; an error indicates
// the cache backend itself failed.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
