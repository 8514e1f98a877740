package repositories

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/zenith-gateway/zenith-gateway/internal/db/models"
)

func newUsageRepo(t *testing.T) (*UsageLogRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewUsageLogRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestBulkInsert(t *testing.T) {
	repo, mock := newUsageRepo(t)

	logs := []models.UsageLog{
		{KeyID: "key-1", Endpoint: "/v1/users", Method: "GET", StatusCode: 200, LatencyMS: 12},
		{KeyID: "key-1", Endpoint: "/v1/users", Method: "POST", StatusCode: 201, LatencyMS: 30},
	}

	mock.ExpectExec("INSERT INTO usage_logs").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.BulkInsert(context.Background(), logs); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBulkInsert_FillsIDAndTimestamp(t *testing.T) {
	repo, mock := newUsageRepo(t)

	logs := []models.UsageLog{{KeyID: "key-1", Endpoint: "/v1/x", Method: "GET", StatusCode: 200, LatencyMS: 5}}

	mock.ExpectExec("INSERT INTO usage_logs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.BulkInsert(context.Background(), logs); err != nil {
		t.Fatalf("BulkInsert: %v", err)
	}
	if logs[0].ID == "" {
		t.Error("ID not assigned before insert")
	}
	if logs[0].Timestamp.IsZero() {
		t.Error("Timestamp not assigned before insert")
	}
}

func TestBulkInsert_EmptyBatchIsNoop(t *testing.T) {
	repo, mock := newUsageRepo(t)

	if err := repo.BulkInsert(context.Background(), nil); err != nil {
		t.Fatalf("BulkInsert(nil): %v", err)
	}
	// No Exec expectation registered: any statement would fail the test.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
