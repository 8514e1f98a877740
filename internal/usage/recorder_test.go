package usage

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zenith-gateway/zenith-gateway/internal/db/models"
	"github.com/zenith-gateway/zenith-gateway/internal/store"
)

func TestRecorder_SubmitReachesQueue(t *testing.T) {
	ms := store.NewMemoryStore()
	t.Cleanup(ms.Stop)
	r := NewRecorder(ms, 16, slog.Default())

	r.Submit(models.UsageLog{KeyID: "key-1", Endpoint: "/v1/chat", Method: "GET", StatusCode: 200, LatencyMS: 7})
	r.Submit(models.UsageLog{KeyID: "key-2", Endpoint: "/v1/chat", Method: "POST", StatusCode: 502, LatencyMS: 30})
	r.Close()

	raw, err := ms.QueueRange(context.Background(), store.UsageQueueKey, 0, -1)
	require.NoError(t, err)
	require.Len(t, raw, 2)

	var rec models.UsageLog
	require.NoError(t, json.Unmarshal(raw[0], &rec))
	assert.Equal(t, "key-1", rec.KeyID)
	assert.Equal(t, "/v1/chat", rec.Endpoint)
}

func TestRecorder_SubmitNeverBlocksWhenFull(t *testing.T) {
	ms := store.NewMemoryStore()
	t.Cleanup(ms.Stop)
	r := NewRecorder(ms, 1, slog.Default())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			r.Submit(models.UsageLog{KeyID: "key-1", StatusCode: 200})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a full buffer")
	}
	r.Close()
}
