// Package store abstracts the shared counter and queue primitives the
// admission pipeline depends on: atomic windowed counters for rate/quota
// enforcement and a list-shaped queue for the usage pipeline. Two
// implementations exist — RedisStore (shared across gateway replicas) and
// MemoryStore (single process). The limiter and usage worker are written
// against this interface so degraded-mode selection happens once at startup
// instead of being branched throughout the hot path.
package store

import (
	"context"
	"time"
)

// Store provides single-key atomic counter operations and queue operations.
// All methods must be safe for concurrent use. Counter increments are atomic
// at (key, window) granularity — implementations must never read-then-write
// in two separate round trips.
type Store interface {
	// IncrWithExpiry atomically increments key and, only if the key has no
	// TTL yet (its first increment), sets expiry to ttl. Returns the
	// post-increment value.
	IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// GetCount returns the current value of a counter key, 0 if absent.
	GetCount(ctx context.Context, key string) (int64, error)

	// Push appends values to the tail of the named queue.
	Push(ctx context.Context, queue string, values ...[]byte) error

	// QueueLen returns the current length of the named queue.
	QueueLen(ctx context.Context, queue string) (int64, error)

	// QueueRange returns queue entries from head, indices [start, stop]
	// inclusive; stop = -1 means through the tail.
	QueueRange(ctx context.Context, queue string, start, stop int64) ([][]byte, error)

	// QueueTrim drops exactly n entries from the head of the queue. Entries
	// pushed after a preceding QueueRange snapshot must survive.
	QueueTrim(ctx context.Context, queue string, n int64) error
}

// Key shapes shared by the limiter, resolver cache, and usage pipeline. They
// match the wire format used by earlier deployments so counters survive
// rolling upgrades.
const (
	RateLimitPrefix    = "ratelimit"
	CredentialPrefix   = "apikey_cache"
	MonthlyUsagePrefix = "usage:monthly"
	UsageQueueKey      = "usage_logs_buffer"
)

// MinuteWindow is the bucketing granularity for throughput counters.
const MinuteWindow = time.Minute
