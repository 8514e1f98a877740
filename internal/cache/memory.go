package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache implements Cache in-process. Used when Redis is not configured
// and in tests. Expired entries are dropped lazily on Get and swept by a
// janitor so an idle cache does not grow without bound.
type MemoryCache struct {
	mu       sync.RWMutex
	entries  map[string]memEntry
	stopCh   chan struct{}
	stopOnce sync.Once
}

type memEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates a MemoryCache and starts its janitor.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memEntry),
		stopCh:  make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Stop terminates the janitor goroutine.
func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func (c *MemoryCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, e := range c.entries {
				if now.After(e.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	cp := make([]byte, len(e.value))
	copy(cp, e.value)
	return cp, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)

	c.mu.Lock()
	c.entries[key] = memEntry{value: cp, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}
