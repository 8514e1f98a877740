// Package usage captures per-request usage records and flushes them to
// durable storage in batches, off the request path.
package usage

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/zenith-gateway/zenith-gateway/internal/db/models"
	"github.com/zenith-gateway/zenith-gateway/internal/safego"
	"github.com/zenith-gateway/zenith-gateway/internal/store"
	"github.com/zenith-gateway/zenith-gateway/internal/telemetry"
)

const defaultBufferSize = 1024

// Recorder accepts usage records without blocking the caller. Records pass
// through a bounded channel to a single drainer goroutine that pushes them
// onto the shared queue. When the channel is full the record is dropped and
// counted, never waited on.
type Recorder struct {
	store  store.Store
	logger *slog.Logger
	ch     chan models.UsageLog
	done   chan struct{}
}

func NewRecorder(s store.Store, bufferSize int, logger *slog.Logger) *Recorder {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	r := &Recorder{
		store:  s,
		logger: logger,
		ch:     make(chan models.UsageLog, bufferSize),
		done:   make(chan struct{}),
	}
	safego.Go(r.drain)
	return r
}

// Submit hands off a record for asynchronous enqueueing. It never blocks.
func (r *Recorder) Submit(rec models.UsageLog) {
	select {
	case r.ch <- rec:
	default:
		telemetry.UsageRecordsDroppedTotal.Inc()
		r.logger.Warn("usage record dropped, buffer full", "key_id", rec.KeyID)
	}
}

// Close stops the drainer after the buffered records have been pushed.
func (r *Recorder) Close() {
	close(r.ch)
	<-r.done
}

func (r *Recorder) drain() {
	defer close(r.done)
	for rec := range r.ch {
		payload, err := json.Marshal(rec)
		if err != nil {
			r.logger.Error("usage record not serializable", "error", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.store.Push(ctx, store.UsageQueueKey, payload)
		cancel()
		if err != nil {
			telemetry.UsageRecordsDroppedTotal.Inc()
			r.logger.Warn("usage record push failed", "key_id", rec.KeyID, "error", err)
		}
	}
}
