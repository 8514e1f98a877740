package usage

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/zenith-gateway/zenith-gateway/internal/db/models"
	"github.com/zenith-gateway/zenith-gateway/internal/store"
	"github.com/zenith-gateway/zenith-gateway/internal/telemetry"
)

// DefaultFlushInterval is how often the flush worker drains the queue.
const DefaultFlushInterval = 10 * time.Second

// Sink persists a batch of usage records.
type Sink interface {
	BulkInsert(ctx context.Context, logs []models.UsageLog) error
}

// FlushWorker periodically snapshots the usage queue, bulk-writes the batch,
// and trims exactly what it read. Records pushed while a flush is in
// progress stay behind the trim point and are picked up next cycle. A failed
// write trims nothing, so the batch is retried whole on the next tick.
type FlushWorker struct {
	store    store.Store
	sink     Sink
	interval time.Duration
	logger   *slog.Logger
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

func NewFlushWorker(s store.Store, sink Sink, interval time.Duration, logger *slog.Logger) *FlushWorker {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &FlushWorker{
		store:    s,
		sink:     sink,
		interval: interval,
		logger:   logger,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start runs the flush loop until ctx is cancelled or Stop is called.
func (w *FlushWorker) Start(ctx context.Context) {
	defer close(w.doneChan)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("usage flush worker started", "interval", w.interval)

	for {
		select {
		case <-ticker.C:
			w.Flush(ctx)
		case <-w.stopChan:
			// Final drain so records buffered at shutdown are not lost.
			w.Flush(ctx)
			w.logger.Info("usage flush worker stopped")
			return
		case <-ctx.Done():
			w.logger.Info("usage flush worker context cancelled")
			return
		}
	}
}

// Stop signals the flush loop to exit and blocks until it has returned, so
// the final drain is complete before callers tear down the store and sink.
// Stop must not be called before Start is running.
func (w *FlushWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
}

// Flush performs one read-batch-trim cycle.
func (w *FlushWorker) Flush(ctx context.Context) {
	queued, err := w.store.QueueLen(ctx, store.UsageQueueKey)
	if err != nil {
		w.logger.Warn("usage queue length check failed", "error", err)
		return
	}
	telemetry.WorkerQueueSize.Set(float64(queued))
	if queued == 0 {
		return
	}

	raw, err := w.store.QueueRange(ctx, store.UsageQueueKey, 0, -1)
	if err != nil {
		w.logger.Warn("usage queue read failed", "error", err)
		return
	}
	if len(raw) == 0 {
		return
	}

	batch := make([]models.UsageLog, 0, len(raw))
	for _, payload := range raw {
		var rec models.UsageLog
		if err := json.Unmarshal(payload, &rec); err != nil {
			// A corrupt entry is skipped but still trimmed, otherwise it
			// would poison every subsequent cycle.
			w.logger.Error("corrupt usage record skipped", "error", err)
			continue
		}
		batch = append(batch, rec)
	}

	if len(batch) > 0 {
		if err := w.sink.BulkInsert(ctx, batch); err != nil {
			w.logger.Warn("usage batch write failed, retrying next cycle",
				"batch_size", len(batch), "error", err)
			return
		}
		telemetry.UsageRecordsFlushedTotal.Add(float64(len(batch)))
	}

	// Trim exactly the snapshot we read, not the queue's current length.
	if err := w.store.QueueTrim(ctx, store.UsageQueueKey, int64(len(raw))); err != nil {
		w.logger.Warn("usage queue trim failed", "error", err)
		return
	}
	w.logger.Debug("usage batch flushed", "count", len(batch))
}
