package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tildaslashalef/tasknest/internal/loggy"
)

// SQLStore is the durable on-device cache: one row per entity keyed by id,
// the full domain record as a JSON payload, and the sync bookkeeping
// mirrored into columns so pending records can be scanned without
// deserializing the whole table.
//
// SQLite serializes writers, so concurrent saves to different keys from a
// reconciliation fan-out are safe.
type SQLStore[T Entity] struct {
	db      *sql.DB
	table   string
	newFn   func() T
	logger  *loggy.Logger
	builder sq.StatementBuilderType
}

// NewSQLStore creates a local store over the given table. newFn allocates
// an empty entity for the JSON payload to be decoded into.
func NewSQLStore[T Entity](db *sql.DB, table string, newFn func() T, logger *loggy.Logger) *SQLStore[T] {
	return &SQLStore[T]{
		db:      db,
		table:   table,
		newFn:   newFn,
		logger:  logger,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// GetAll returns every cached record, soft-deleted ones included. Filtering
// deleted records out of caller-facing results is the engine's concern.
func (s *SQLStore[T]) GetAll(ctx context.Context) ([]T, error) {
	query, args, err := s.builder.
		Select("id", "payload").
		From(s.table).
		OrderBy("last_updated DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building select query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	var records []T
	for rows.Next() {
		record, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return records, nil
}

// GetByID returns the cached record for id, or ErrNotFound.
func (s *SQLStore[T]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T

	query, args, err := s.builder.
		Select("id", "payload").
		From(s.table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return zero, fmt.Errorf("building select query: %w", err)
	}

	var rowID, payload string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&rowID, &payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("scanning record: %w", err)
	}

	return s.decode(rowID, payload)
}

// Create inserts a new record, failing with ErrAlreadyExists if the id is
// already present.
func (s *SQLStore[T]) Create(ctx context.Context, record T) (T, error) {
	var zero T

	_, err := s.GetByID(ctx, record.GetID())
	if err == nil {
		return zero, ErrAlreadyExists
	}
	if !errors.Is(err, ErrNotFound) {
		return zero, fmt.Errorf("checking for existing record: %w", err)
	}

	query, args, err := s.insertQuery(record).ToSql()
	if err != nil {
		return zero, fmt.Errorf("building insert query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return zero, fmt.Errorf("inserting into %s: %w", s.table, err)
	}

	return record, nil
}

// Update overwrites the record stored under id, failing with ErrNotFound
// if no such row exists.
func (s *SQLStore[T]) Update(ctx context.Context, id string, record T) (T, error) {
	var zero T

	payload, err := json.Marshal(record)
	if err != nil {
		return zero, fmt.Errorf("encoding record: %w", err)
	}

	meta := record.Meta()
	query, args, err := s.builder.
		Update(s.table).
		Set("payload", string(payload)).
		Set("pending_sync", meta.PendingSync).
		Set("sync_error", nullableString(meta.SyncError)).
		Set("deleted", meta.Deleted).
		Set("last_updated", meta.LastUpdated.UTC().Format(time.RFC3339Nano)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return zero, fmt.Errorf("building update query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return zero, fmt.Errorf("updating %s: %w", s.table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return zero, fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return zero, ErrNotFound
	}

	return record, nil
}

// Delete hard-removes a row. The engine only calls this to purge
// temporary-id placeholders; domain deletes are soft and travel through
// Update.
func (s *SQLStore[T]) Delete(ctx context.Context, id string) error {
	query, args, err := s.builder.
		Delete(s.table).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", s.table, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Save upserts a record unconditionally. Cache refreshes and optimistic
// local writes go through here.
func (s *SQLStore[T]) Save(ctx context.Context, record T) error {
	query, args, err := s.insertQuery(record).
		Suffix("ON CONFLICT(id) DO UPDATE SET " +
			"payload = excluded.payload, " +
			"pending_sync = excluded.pending_sync, " +
			"sync_error = excluded.sync_error, " +
			"deleted = excluded.deleted, " +
			"last_updated = excluded.last_updated").
		ToSql()
	if err != nil {
		return fmt.Errorf("building upsert query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving into %s: %w", s.table, err)
	}

	return nil
}

// ListPending returns every record whose local copy has diverged from the
// remote and awaits reconciliation.
func (s *SQLStore[T]) ListPending(ctx context.Context) ([]T, error) {
	query, args, err := s.builder.
		Select("id", "payload").
		From(s.table).
		Where(sq.Eq{"pending_sync": true}).
		OrderBy("last_updated ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building pending query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pending records: %w", err)
	}
	defer rows.Close()

	var records []T
	for rows.Next() {
		record, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return records, nil
}

func (s *SQLStore[T]) insertQuery(record T) sq.InsertBuilder {
	payload, _ := json.Marshal(record)
	meta := record.Meta()
	return s.builder.
		Insert(s.table).
		Columns("id", "payload", "pending_sync", "sync_error", "deleted", "last_updated").
		Values(
			record.GetID(),
			string(payload),
			meta.PendingSync,
			nullableString(meta.SyncError),
			meta.Deleted,
			meta.LastUpdated.UTC().Format(time.RFC3339Nano),
		)
}

func (s *SQLStore[T]) scanRecord(rows *sql.Rows) (T, error) {
	var zero T
	var rowID, payload string
	if err := rows.Scan(&rowID, &payload); err != nil {
		return zero, fmt.Errorf("scanning record: %w", err)
	}
	return s.decode(rowID, payload)
}

func (s *SQLStore[T]) decode(id, payload string) (T, error) {
	record := s.newFn()
	if err := json.Unmarshal([]byte(payload), record); err != nil {
		var zero T
		return zero, fmt.Errorf("decoding payload for %s: %w", id, err)
	}
	// The id column is authoritative over whatever the payload carries.
	record.SetID(id)
	return record, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
