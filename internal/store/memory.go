package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process state. It backs tests and the
// degraded mode where Redis is not configured: counters and the usage queue
// then live only in this process, which is acceptable for a single replica
// riding out an outage but provides no cross-replica coordination.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memCounter
	queues   map[string][][]byte
	stopCh   chan struct{}
	stopOnce sync.Once
}

type memCounter struct {
	value     int64
	expiresAt time.Time // zero means no expiry set yet
}

// NewMemoryStore creates a MemoryStore and starts its expiry janitor.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		counters: make(map[string]*memCounter),
		queues:   make(map[string][][]byte),
		stopCh:   make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Stop terminates the janitor goroutine.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, c := range s.counters {
				if !c.expiresAt.IsZero() && now.After(c.expiresAt) {
					delete(s.counters, key)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}

// expired reports whether a counter has passed its expiry. Checked on every
// read so correctness never depends on janitor timing.
func (c *memCounter) expired(now time.Time) bool {
	return !c.expiresAt.IsZero() && now.After(c.expiresAt)
}

func (s *MemoryStore) IncrWithExpiry(_ context.Context, key string, ttl time.Duration) (int64, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || c.expired(now) {
		c = &memCounter{}
		s.counters[key] = c
	}
	c.value++
	if c.expiresAt.IsZero() {
		c.expiresAt = now.Add(ttl)
	}
	return c.value, nil
}

func (s *MemoryStore) GetCount(_ context.Context, key string) (int64, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || c.expired(now) {
		return 0, nil
	}
	return c.value, nil
}

func (s *MemoryStore) Push(_ context.Context, queue string, values ...[]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range values {
		cp := make([]byte, len(v))
		copy(cp, v)
		s.queues[queue] = append(s.queues[queue], cp)
	}
	return nil
}

func (s *MemoryStore) QueueLen(_ context.Context, queue string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.queues[queue])), nil
}

func (s *MemoryStore) QueueRange(_ context.Context, queue string, start, stop int64) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[queue]
	n := int64(len(q))
	if stop < 0 {
		stop = n + stop
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop {
		return nil, nil
	}
	out := make([][]byte, 0, stop-start+1)
	for _, v := range q[start : stop+1] {
		cp := make([]byte, len(v))
		copy(cp, v)
		out = append(out, cp)
	}
	return out, nil
}

func (s *MemoryStore) QueueTrim(_ context.Context, queue string, n int64) error {
	if n <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[queue]
	if n >= int64(len(q)) {
		delete(s.queues, queue)
		return nil
	}
	s.queues[queue] = q[n:]
	return nil
}
