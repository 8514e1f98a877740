package models

import "time"

// UsageLog is one request's usage record. It is ephemeral while queued (JSON
// in the shared queue) and becomes a durable row once the flush worker
// persists it.
type UsageLog struct {
	ID         string    `db:"id" json:"id,omitempty"`
	KeyID      string    `db:"key_id" json:"key_id"`
	Endpoint   string    `db:"endpoint" json:"endpoint"`
	Method     string    `db:"method" json:"method"`
	StatusCode int       `db:"status_code" json:"status_code"`
	LatencyMS  int64     `db:"latency_ms" json:"latency_ms"`
	Timestamp  time.Time `db:"timestamp" json:"timestamp"`
}
