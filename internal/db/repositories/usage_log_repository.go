// usage_log_repository.go implements UsageLogRepository, the bulk-insert
// sink for the flush worker. It is the only component that writes to
// usage_logs.
package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/zenith-gateway/zenith-gateway/internal/db/models"
)

// UsageLogRepository handles usage log persistence
type UsageLogRepository struct {
	db *sqlx.DB
}

// NewUsageLogRepository creates a new UsageLogRepository
func NewUsageLogRepository(db *sqlx.DB) *UsageLogRepository {
	return &UsageLogRepository{db: db}
}

// BulkInsert persists a batch of usage records in a single statement. The
// batch is all-or-nothing: on error no rows are written, so the flush worker
// can safely retry the whole snapshot next cycle.
func (r *UsageLogRepository) BulkInsert(ctx context.Context, logs []models.UsageLog) error {
	if len(logs) == 0 {
		return nil
	}

	now := time.Now()
	for i := range logs {
		if logs[i].ID == "" {
			logs[i].ID = uuid.New().String()
		}
		if logs[i].Timestamp.IsZero() {
			logs[i].Timestamp = now
		}
	}

	query := `
		INSERT INTO usage_logs (id, key_id, endpoint, method, status_code, latency_ms, timestamp)
		VALUES (:id, :key_id, :endpoint, :method, :status_code, :latency_ms, :timestamp)
	`

	_, err := r.db.NamedExecContext(ctx, query, logs)
	return err
}
