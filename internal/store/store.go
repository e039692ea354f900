// Package store defines the storage adapter contract shared by the remote
// source-of-truth store and the local durable cache, plus the syncable
// entity model every record flowing through the repository engine must
// satisfy. The engine depends only on these interfaces, never on a
// concrete storage technology.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist in the store.
	// It is an explicit result, distinct from transport or storage failures.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a create collides with an existing
	// record key.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrPermissionDenied is returned when the store rejects the caller's
	// credentials for the requested record.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnavailable is returned when the store cannot be reached at all.
	ErrUnavailable = errors.New("store unavailable")
)

// Adapter is the uniform CRUD contract implemented by both the remote and
// the local store. Every operation may fail; the contract makes no ordering
// guarantee across concurrent callers — serialization of writes that must
// not race is the repository engine's job.
type Adapter[R any] interface {
	GetAll(ctx context.Context) ([]R, error)
	GetByID(ctx context.Context, id string) (R, error)
	Create(ctx context.Context, record R) (R, error)
	Update(ctx context.Context, id string, record R) (R, error)
	Delete(ctx context.Context, id string) error
}

// Local extends the adapter contract with the operations the repository
// engine needs from the durable on-device cache: unconditional upserts for
// cache refreshes and a scan over records awaiting reconciliation.
// Delete on a local store is a hard removal; the engine uses it only to
// purge temporary-id placeholders superseded by a remote id.
type Local[T Entity] interface {
	Adapter[T]
	Save(ctx context.Context, record T) error
	ListPending(ctx context.Context) ([]T, error)
}

// SyncMeta carries the sync bookkeeping every syncable entity embeds.
// The repository engine exclusively owns transitions of these fields;
// domain code must never set them directly.
type SyncMeta struct {
	PendingSync bool      `json:"pending_sync"`
	LastUpdated time.Time `json:"last_updated"`
	SyncError   string    `json:"sync_error,omitempty"`
	Deleted     bool      `json:"deleted"`
}

// Entity is the shape the repository engine requires of a domain record:
// a globally unique string id plus the embedded sync bookkeeping.
type Entity interface {
	GetID() string
	SetID(id string)
	Meta() *SyncMeta
}

// MarkPending flags the local copy as diverged from the remote. The reason
// is kept for callers inspecting degraded writes; it is empty when the
// divergence came from being offline rather than from a failure.
func (m *SyncMeta) MarkPending(reason string) {
	m.PendingSync = true
	m.SyncError = reason
	m.Touch()
}

// MarkSynced clears the pending flag and any recorded sync failure.
func (m *SyncMeta) MarkSynced() {
	m.PendingSync = false
	m.SyncError = ""
	m.Touch()
}

// Touch refreshes the last-written timestamp. It feeds cache-freshness
// decisions only, never conflict arbitration.
func (m *SyncMeta) Touch() {
	m.LastUpdated = time.Now().UTC()
}
