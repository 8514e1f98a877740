package limiter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zenith-gateway/zenith-gateway/internal/db/models"
)

// DefaultFallbackThreshold is the per-origin request ceiling applied while
// the shared counter store is unreachable. It is deliberately coarse: the
// goal in degraded mode is to stop runaway clients, not to bill accurately.
const DefaultFallbackThreshold = 100

// FallbackLimiter is a process-local sliding-window limiter used when no
// shared store is available. Windows are keyed by client origin rather than
// credential, so a caller holding several valid keys still gets one window.
// Monthly quotas are not enforced in this mode because they cannot be
// tracked without shared state.
type FallbackLimiter struct {
	threshold int
	window    time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*fallbackEntry
	stopCh  chan struct{}
	stopped sync.Once
}

type fallbackEntry struct {
	// timestamps of requests inside the current window, oldest first
	hits []time.Time
}

func NewFallbackLimiter(threshold int, logger *slog.Logger) *FallbackLimiter {
	if threshold <= 0 {
		threshold = DefaultFallbackThreshold
	}
	fl := &FallbackLimiter{
		threshold: threshold,
		window:    time.Minute,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[string]*fallbackEntry),
		stopCh:    make(chan struct{}),
	}
	go fl.cleanup()
	return fl
}

// Stop terminates the cleanup goroutine.
func (fl *FallbackLimiter) Stop() {
	fl.stopped.Do(func() { close(fl.stopCh) })
}

func (fl *FallbackLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := fl.now().Add(-fl.window)
			fl.mu.Lock()
			for key, entry := range fl.entries {
				entry.hits = pruneBefore(entry.hits, cutoff)
				if len(entry.hits) == 0 {
					delete(fl.entries, key)
				}
			}
			fl.mu.Unlock()
		case <-fl.stopCh:
			return
		}
	}
}

func (fl *FallbackLimiter) Allow(_ context.Context, _ *models.Credential, origin string) Decision {
	now := fl.now()
	cutoff := now.Add(-fl.window)

	fl.mu.Lock()
	defer fl.mu.Unlock()

	entry, ok := fl.entries[origin]
	if !ok {
		entry = &fallbackEntry{}
		fl.entries[origin] = entry
	}
	entry.hits = pruneBefore(entry.hits, cutoff)

	if len(entry.hits) >= fl.threshold {
		retry := entry.hits[0].Add(fl.window).Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		fl.logger.Debug("fallback limiter rejected request", "origin", origin)
		return Decision{
			Allowed:    false,
			Limit:      fl.threshold,
			Remaining:  0,
			RetryAfter: retry,
			Reason:     ReasonRateLimited,
		}
	}

	entry.hits = append(entry.hits, now)
	return Decision{
		Allowed:   true,
		Limit:     fl.threshold,
		Remaining: fl.threshold - len(entry.hits),
	}
}

func pruneBefore(hits []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(hits) && !hits[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return hits
	}
	return append(hits[:0], hits[idx:]...)
}
