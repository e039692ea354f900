package synclog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tildaslashalef/tasknest/internal/loggy"
)

// ErrLogNotFound is returned when no sync log matches a query
var ErrLogNotFound = errors.New("sync log not found")

// Repository defines operations for persisting sync logs
type Repository interface {
	// CreateSyncLog persists a completed log entry
	CreateSyncLog(ctx context.Context, log *SyncLog) error

	// GetSyncLogs retrieves log entries, most recent first, optionally
	// filtered by repository name
	GetSyncLogs(ctx context.Context, repository string, limit, offset int) ([]*SyncLog, error)

	// GetLatestSyncLog retrieves the most recent log entry for a repository
	GetLatestSyncLog(ctx context.Context, repository string) (*SyncLog, error)
}

// SQLRepository implements Repository using SQLite
type SQLRepository struct {
	db      *sql.DB
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLRepository creates a new sync log SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) *SQLRepository {
	return &SQLRepository{
		db:      db,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// CreateSyncLog persists a completed log entry
func (r *SQLRepository) CreateSyncLog(ctx context.Context, log *SyncLog) error {
	query, args, err := r.builder.
		Insert("sync_logs").
		Columns(
			"id",
			"sync_type",
			"repository",
			"total_items",
			"success_items",
			"failed_items",
			"abandoned_items",
			"success",
			"error_message",
			"started_at",
			"completed_at",
		).
		Values(
			log.ID,
			log.SyncType,
			log.Repository,
			log.TotalItems,
			log.SuccessItems,
			log.FailedItems,
			log.AbandonedItems,
			log.Success,
			log.ErrorMessage,
			log.StartedAt.UTC().Format(time.RFC3339Nano),
			log.CompletedAt.UTC().Format(time.RFC3339Nano),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("building create sync log query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing create sync log query: %w", err)
	}

	return nil
}

// GetSyncLogs retrieves log entries, most recent first
func (r *SQLRepository) GetSyncLogs(ctx context.Context, repository string, limit, offset int) ([]*SyncLog, error) {
	q := r.builder.
		Select(
			"id",
			"sync_type",
			"repository",
			"total_items",
			"success_items",
			"failed_items",
			"abandoned_items",
			"success",
			"error_message",
			"started_at",
			"completed_at",
		).
		From("sync_logs").
		OrderBy("completed_at DESC")

	if repository != "" {
		q = q.Where(sq.Eq{"repository": repository})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	if offset > 0 {
		q = q.Offset(uint64(offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get sync logs query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing get sync logs query: %w", err)
	}
	defer rows.Close()

	var logs []*SyncLog
	for rows.Next() {
		log, err := scanSyncLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync log rows: %w", err)
	}

	return logs, nil
}

// GetLatestSyncLog retrieves the most recent log entry for a repository
func (r *SQLRepository) GetLatestSyncLog(ctx context.Context, repository string) (*SyncLog, error) {
	logs, err := r.GetSyncLogs(ctx, repository, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(logs) == 0 {
		return nil, ErrLogNotFound
	}
	return logs[0], nil
}

func scanSyncLog(rows *sql.Rows) (*SyncLog, error) {
	var log SyncLog
	var errorMessage sql.NullString
	var startedAt, completedAt string

	err := rows.Scan(
		&log.ID,
		&log.SyncType,
		&log.Repository,
		&log.TotalItems,
		&log.SuccessItems,
		&log.FailedItems,
		&log.AbandonedItems,
		&log.Success,
		&errorMessage,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning sync log: %w", err)
	}

	log.ErrorMessage = errorMessage.String

	if log.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if log.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt); err != nil {
		return nil, fmt.Errorf("parsing completed_at: %w", err)
	}

	return &log, nil
}
