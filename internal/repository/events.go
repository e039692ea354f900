package repository

import (
	"time"

	"github.com/tildaslashalef/tasknest/internal/store"
)

// EventType identifies what a repository event describes
type EventType string

const (
	// EventCreated fires after a created entity reaches the local cache
	EventCreated EventType = "entity-created"
	// EventUpdated fires after an updated entity reaches the local cache
	EventUpdated EventType = "entity-updated"
	// EventDeleted fires after a soft-deleted entity reaches the local cache
	EventDeleted EventType = "entity-deleted"
	// EventSyncCompleted fires once per reconciliation pass with its counts
	EventSyncCompleted EventType = "sync-completed"
)

// Event is delivered to subscribers after a store write completes. Events
// carry no ordering guarantee relative to other repositories.
type Event[T store.Entity] struct {
	Type   EventType
	Entity T
	Sync   *SyncResult
}

// SyncResult summarizes one reconciliation pass.
type SyncResult struct {
	Total     int
	Synced    int
	Failed    int
	Abandoned int
	Duration  time.Duration
}

// Subscribe registers an observer and returns its unsubscribe function.
// Callbacks run synchronously on the goroutine that performed the write.
func (r *Repository[T, C, U, A]) Subscribe(fn func(Event[T])) func() {
	r.subMu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Repository[T, C, U, A]) emit(ev Event[T]) {
	r.subMu.Lock()
	subs := make([]func(Event[T]), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
