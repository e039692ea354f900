package synclog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/tasknest/internal/loggy"
)

func newTestRepository(t *testing.T) (*SQLRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock database")
	t.Cleanup(func() { db.Close() })

	return NewSQLRepository(db, loggy.NewNoopLogger()), mock
}

func TestCreateSyncLog(t *testing.T) {
	repo, mock := newTestRepository(t)

	log := NewSyncLog(SyncTypeManual, "tasks")
	log.Finish(3, 2, 1, 0)

	mock.ExpectExec("INSERT INTO sync_logs").
		WithArgs(
			log.ID,
			log.SyncType,
			"tasks",
			3, 2, 1, 0,
			false,
			"",
			sqlmock.AnyArg(),
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateSyncLog(context.Background(), log)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSyncLogs(t *testing.T) {
	repo, mock := newTestRepository(t)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "sync_type", "repository", "total_items", "success_items",
		"failed_items", "abandoned_items", "success", "error_message",
		"started_at", "completed_at",
	}).AddRow(
		"sync-1", "interval", "tasks", 5, 5, 0, 0, true, nil,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)

	mock.ExpectQuery("SELECT .+ FROM sync_logs .+ WHERE repository = ?").
		WithArgs("tasks").
		WillReturnRows(rows)

	logs, err := repo.GetSyncLogs(context.Background(), "tasks", 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, SyncTypeInterval, logs[0].SyncType)
	assert.Equal(t, 5, logs[0].TotalItems)
	assert.True(t, logs[0].Success)
	assert.Empty(t, logs[0].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLatestSyncLogEmpty(t *testing.T) {
	repo, mock := newTestRepository(t)

	mock.ExpectQuery("SELECT .+ FROM sync_logs").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "sync_type", "repository", "total_items", "success_items",
			"failed_items", "abandoned_items", "success", "error_message",
			"started_at", "completed_at",
		}))

	_, err := repo.GetLatestSyncLog(context.Background(), "notes")
	assert.ErrorIs(t, err, ErrLogNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSyncLogFinish(t *testing.T) {
	log := NewSyncLog(SyncTypeConnectivity, "notes")

	log.Finish(4, 3, 0, 1)
	assert.True(t, log.Success, "abandoned entities do not fail a pass")
	assert.Equal(t, 4, log.TotalItems)
	assert.Equal(t, 1, log.AbandonedItems)

	log.Finish(2, 1, 1, 0)
	assert.False(t, log.Success)
}

func TestSyncLogMarkFailed(t *testing.T) {
	log := NewSyncLog(SyncTypeManual, "tasks")
	log.MarkFailed("cache unreadable")

	assert.False(t, log.Success)
	assert.Equal(t, "cache unreadable", log.ErrorMessage)
	assert.False(t, log.CompletedAt.IsZero())
}
