package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	t.Cleanup(s.Stop)
	return s
}

func TestMemoryStore_IncrWithExpiry(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := s.IncrWithExpiry(ctx, "k", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	count, err := s.GetCount(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestMemoryStore_CounterExpires(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.IncrWithExpiry(ctx, "k", 20*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	// Expiry is enforced on read, not only by the janitor.
	count, err := s.GetCount(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, count)

	got, err := s.IncrWithExpiry(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got, "expired counter must restart at 1")
}

func TestMemoryStore_ConcurrentIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, _ = s.IncrWithExpiry(ctx, "shared", time.Minute)
			}
		}()
	}
	wg.Wait()

	count, err := s.GetCount(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), count, "concurrent increments must not under-count")
}

func TestMemoryStore_QueueRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Push(ctx, "q", []byte(fmt.Sprintf("rec-%d", i))))
	}

	n, err := s.QueueLen(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	vals, err := s.QueueRange(ctx, "q", 0, -1)
	require.NoError(t, err)
	require.Len(t, vals, 5)
	assert.Equal(t, "rec-0", string(vals[0]))
	assert.Equal(t, "rec-4", string(vals[4]))
}

func TestMemoryStore_TrimDropsOnlySnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Push(ctx, "q", []byte(fmt.Sprintf("old-%d", i))))
	}
	vals, err := s.QueueRange(ctx, "q", 0, -1)
	require.NoError(t, err)
	require.Len(t, vals, 5)

	// Records pushed between the snapshot and the trim must survive.
	require.NoError(t, s.Push(ctx, "q", []byte("new-0"), []byte("new-1")))
	require.NoError(t, s.QueueTrim(ctx, "q", int64(len(vals))))

	rest, err := s.QueueRange(ctx, "q", 0, -1)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "new-0", string(rest[0]))
	assert.Equal(t, "new-1", string(rest[1]))
}

func TestMemoryStore_TrimEntireQueue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Push(ctx, "q", []byte("a"), []byte("b")))
	require.NoError(t, s.QueueTrim(ctx, "q", 2))

	n, err := s.QueueLen(ctx, "q")
	require.NoError(t, err)
	assert.Zero(t, n)
}
