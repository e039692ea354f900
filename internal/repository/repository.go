// Package repository implements the offline-first repository engine: it
// routes reads and writes between a remote source-of-truth store and a
// local durable cache, writes optimistically to the cache when the remote
// is unreachable, tracks pending changes, and reconciles them on demand.
//
// The engine is generic over the domain entity, its create and update
// inputs, and the remote API shape, parameterized by a set of four
// transform functions instead of per-entity subclassing.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tildaslashalef/tasknest/internal/connectivity"
	"github.com/tildaslashalef/tasknest/internal/loggy"
	"github.com/tildaslashalef/tasknest/internal/store"
	"github.com/tildaslashalef/tasknest/internal/synclog"
	"github.com/tildaslashalef/tasknest/internal/ulid"
)

// Transforms supplies the entity-specific data-shape conversions that
// parameterize the generic engine: API DTO to domain, domain to API DTO,
// create input to domain, and partial-update application.
type Transforms[T store.Entity, C, U, A any] struct {
	FromAPI     func(A) T
	ToAPI       func(T) A
	FromCreate  func(C) T
	ApplyUpdate func(T, U) T
}

// Repository keeps one entity type consistent between the remote store and
// the local cache. Reads and writes are remote-first while online and fall
// back to optimistic local writes flagged pending; Sync pushes pending
// entities back toward the remote.
//
// The engine exclusively owns the sync bookkeeping fields on entities
// passing through it.
type Repository[T store.Entity, C, U, A any] struct {
	name    string
	local   store.Local[T]
	remote  store.Adapter[A]
	monitor connectivity.Monitor
	tf      Transforms[T, C, U, A]
	logs    synclog.Repository
	logger  *loggy.Logger

	// single-flight guard for reconciliation passes
	syncing atomic.Bool

	subMu   sync.Mutex
	subs    map[int]func(Event[T])
	nextSub int
}

type outcome int

const (
	outcomeSynced outcome = iota
	outcomeFailed
	outcomeAbandoned
)

// New creates a repository engine instance. logs may be nil when no audit
// trail is wanted (tests, embedded use).
func New[T store.Entity, C, U, A any](
	name string,
	local store.Local[T],
	remote store.Adapter[A],
	monitor connectivity.Monitor,
	tf Transforms[T, C, U, A],
	logs synclog.Repository,
	logger *loggy.Logger,
) *Repository[T, C, U, A] {
	return &Repository[T, C, U, A]{
		name:    name,
		local:   local,
		remote:  remote,
		monitor: monitor,
		tf:      tf,
		logs:    logs,
		logger:  logger,
		subs:    make(map[int]func(Event[T])),
	}
}

// Name returns the repository's registered name.
func (r *Repository[T, C, U, A]) Name() string {
	return r.name
}

// GetAll returns the best-known complete set of entities, soft-deleted
// records omitted. While online it fetches from the remote and refreshes
// the local cache; otherwise it serves the cache. It never returns an
// error for remote failures — it degrades to cached (possibly empty)
// results, so a caller cannot distinguish "genuinely empty" from "offline
// with an empty cache".
func (r *Repository[T, C, U, A]) GetAll(ctx context.Context) ([]T, error) {
	if r.monitor.IsOnline() {
		apiRecords, err := r.remote.GetAll(ctx)
		if err == nil {
			records := make([]T, 0, len(apiRecords))
			for _, a := range apiRecords {
				entity := r.tf.FromAPI(a)
				entity.Meta().MarkSynced()
				records = append(records, entity)
			}
			r.refreshCache(ctx, records)
			return withoutDeleted(records), nil
		}
		r.logger.Warn("Remote fetch failed, serving local cache",
			"repository", r.name, "error", err)
	}

	cached, err := r.local.GetAll(ctx)
	if err != nil {
		r.logger.Error("Local cache read failed", "repository", r.name, "error", err)
		return nil, nil
	}
	return withoutDeleted(cached), nil
}

// GetByID returns a single entity, remote-first with local fallback. A
// successful remote fetch overwrites the cache entry unconditionally: a
// direct fetch reflects intent to see the latest state. Returns
// store.ErrNotFound when neither store has the record.
func (r *Repository[T, C, U, A]) GetByID(ctx context.Context, id string) (T, error) {
	var zero T

	if r.monitor.IsOnline() && !ulid.IsTempID(id) {
		apiRecord, err := r.remote.GetByID(ctx, id)
		if err == nil {
			entity := r.tf.FromAPI(apiRecord)
			entity.Meta().MarkSynced()
			if err := r.local.Save(ctx, entity); err != nil {
				r.logger.Warn("Failed to refresh cache entry",
					"repository", r.name, "id", id, "error", err)
			}
			return entity, nil
		}
		r.logger.Debug("Remote fetch failed, trying local cache",
			"repository", r.name, "id", id, "error", err)
	}

	entity, err := r.local.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return zero, store.ErrNotFound
		}
		return zero, fmt.Errorf("reading local cache: %w", err)
	}
	return entity, nil
}

// Create makes a new entity, always returning a usable domain record even
// while offline. Online, the remote store assigns the authoritative id and
// the result mirrors into the cache; offline or on remote failure, the
// entity is stored locally under a temporary id with pendingSync set. The
// local write always happens after the remote attempt, never before.
func (r *Repository[T, C, U, A]) Create(ctx context.Context, input C) (T, error) {
	var zero T
	entity := r.tf.FromCreate(input)

	if r.monitor.IsOnline() {
		apiRecord, err := r.remote.Create(ctx, r.tf.ToAPI(entity))
		if err == nil {
			created := r.tf.FromAPI(apiRecord)
			created.Meta().MarkSynced()
			if err := r.local.Save(ctx, created); err != nil {
				r.logger.Warn("Failed to mirror created entity into cache",
					"repository", r.name, "id", created.GetID(), "error", err)
			}
			r.emit(Event[T]{Type: EventCreated, Entity: created})
			return created, nil
		}
		r.logger.Warn("Remote create failed, queueing locally",
			"repository", r.name, "error", err)
		entity.Meta().MarkPending(err.Error())
	} else {
		entity.Meta().MarkPending("")
	}

	entity.SetID(ulid.TempID())
	if err := r.local.Save(ctx, entity); err != nil {
		return zero, fmt.Errorf("storing offline create: %w", err)
	}
	r.emit(Event[T]{Type: EventCreated, Entity: entity})
	return entity, nil
}

// Update applies a partial update against the latest locally known state.
// It fails with store.ErrNotFound when no local copy of id exists, and
// never creates a record. The current state is always read from the local
// cache first, even when online.
func (r *Repository[T, C, U, A]) Update(ctx context.Context, id string, input U) (T, error) {
	var zero T

	current, err := r.local.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return zero, store.ErrNotFound
		}
		return zero, fmt.Errorf("reading local cache: %w", err)
	}

	next := r.tf.ApplyUpdate(current, input)
	return r.push(ctx, id, next, EventUpdated)
}

// Delete soft-deletes an entity: the deletion is a flag on the domain
// record, pushed remote-first with local fallback like any update. The
// local row is retained; only superseded temporary-id placeholders are
// ever physically removed.
func (r *Repository[T, C, U, A]) Delete(ctx context.Context, id string) error {
	current, err := r.local.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return fmt.Errorf("reading local cache: %w", err)
	}

	current.Meta().Deleted = true
	_, err = r.push(ctx, id, current, EventDeleted)
	return err
}

// push sends the full next state remote-first, falling back to an
// optimistic pending local write. Temporary ids are never sent to the
// remote store; entities carrying one go straight to the local branch.
func (r *Repository[T, C, U, A]) push(ctx context.Context, id string, next T, evType EventType) (T, error) {
	var zero T

	if r.monitor.IsOnline() && !ulid.IsTempID(id) {
		apiRecord, err := r.remote.Update(ctx, id, r.tf.ToAPI(next))
		if err == nil {
			updated := r.tf.FromAPI(apiRecord)
			updated.Meta().MarkSynced()
			if err := r.local.Save(ctx, updated); err != nil {
				r.logger.Warn("Failed to mirror updated entity into cache",
					"repository", r.name, "id", id, "error", err)
			}
			r.emit(Event[T]{Type: evType, Entity: updated})
			return updated, nil
		}
		r.logger.Warn("Remote write failed, queueing locally",
			"repository", r.name, "id", id, "error", err)
		next.Meta().MarkPending(err.Error())
	} else {
		meta := next.Meta()
		meta.PendingSync = true
		meta.Touch()
	}

	if err := r.local.Save(ctx, next); err != nil {
		return zero, fmt.Errorf("storing offline write: %w", err)
	}
	r.emit(Event[T]{Type: evType, Entity: next})
	return next, nil
}

// HasPendingChanges reports whether any entity awaits reconciliation.
func (r *Repository[T, C, U, A]) HasPendingChanges(ctx context.Context) (bool, error) {
	pending, err := r.local.ListPending(ctx)
	if err != nil {
		return false, fmt.Errorf("listing pending entities: %w", err)
	}
	return len(pending) > 0, nil
}

// Sync runs one reconciliation pass: every pending entity is pushed toward
// the remote store concurrently, and bookkeeping is updated per outcome.
// The call is a no-op (nil result, nil error) when another pass is already
// running or the monitor reports offline — it does not queue.
func (r *Repository[T, C, U, A]) Sync(ctx context.Context, syncType synclog.SyncType) (*SyncResult, error) {
	if !r.syncing.CompareAndSwap(false, true) {
		r.logger.Debug("Reconciliation already in progress, skipping", "repository", r.name)
		return nil, nil
	}
	defer r.syncing.Store(false)

	if !r.monitor.IsOnline() {
		r.logger.Debug("Offline, skipping reconciliation", "repository", r.name)
		return nil, nil
	}

	start := time.Now()
	passLog := synclog.NewSyncLog(syncType, r.name)

	pending, err := r.local.ListPending(ctx)
	if err != nil {
		passLog.MarkFailed(err.Error())
		r.writeLog(ctx, passLog)
		return nil, fmt.Errorf("listing pending entities: %w", err)
	}

	result := &SyncResult{Total: len(pending)}
	if len(pending) == 0 {
		result.Duration = time.Since(start)
		passLog.Finish(0, 0, 0, 0)
		r.writeLog(ctx, passLog)
		r.emit(Event[T]{Type: EventSyncCompleted, Sync: result})
		return result, nil
	}

	// Entities are independent remote records; reconcile them
	// concurrently. One entity's failure never aborts the batch.
	outcomes := make(chan outcome, len(pending))
	var wg sync.WaitGroup
	for _, entity := range pending {
		wg.Add(1)
		go func(e T) {
			defer wg.Done()
			outcomes <- r.reconcile(ctx, e)
		}(entity)
	}
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		switch o {
		case outcomeSynced:
			result.Synced++
		case outcomeAbandoned:
			result.Abandoned++
		case outcomeFailed:
			result.Failed++
		}
	}
	result.Duration = time.Since(start)

	passLog.Finish(result.Total, result.Synced, result.Failed, result.Abandoned)
	r.writeLog(ctx, passLog)
	r.emit(Event[T]{Type: EventSyncCompleted, Sync: result})

	r.logger.Info("Reconciliation pass completed",
		"repository", r.name,
		"total", result.Total,
		"synced", result.Synced,
		"failed", result.Failed,
		"abandoned", result.Abandoned,
		"duration", result.Duration,
	)
	return result, nil
}

// reconcile pushes one pending entity. Entities with a temporary id go
// straight to remote create; others try update first and escalate to
// create when the remote reports not-found.
func (r *Repository[T, C, U, A]) reconcile(ctx context.Context, entity T) outcome {
	id := entity.GetID()

	if ulid.IsTempID(id) {
		return r.reconcileCreate(ctx, entity)
	}

	apiRecord, err := r.remote.Update(ctx, id, r.tf.ToAPI(entity))
	if err == nil {
		return r.finishSynced(ctx, r.tf.FromAPI(apiRecord))
	}
	if errors.Is(err, store.ErrNotFound) {
		// Locally modified but never pushed: upgrade to a first insertion.
		return r.reconcileCreate(ctx, entity)
	}
	return r.recordFailure(ctx, entity, err)
}

func (r *Repository[T, C, U, A]) reconcileCreate(ctx context.Context, entity T) outcome {
	origID := entity.GetID()
	tempID := ""
	if ulid.IsTempID(origID) {
		// A temporary id is never sent to the remote store as a real key.
		tempID = origID
		entity.SetID("")
	}
	apiRecord := r.tf.ToAPI(entity)
	entity.SetID(origID)

	resp, err := r.remote.Create(ctx, apiRecord)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// The record exists remotely but this device cannot resolve it
			// via update. Clear the pending flag without another network
			// attempt so the entity does not loop forever; the divergence
			// stays visible in the log.
			entity.Meta().MarkSynced()
			if err := r.local.Save(ctx, entity); err != nil {
				r.logger.Warn("Failed to persist abandoned entity",
					"repository", r.name, "id", origID, "error", err)
			}
			r.logger.Warn("Abandoning entity with unreconcilable remote twin",
				"repository", r.name, "id", origID)
			return outcomeAbandoned
		}
		return r.recordFailure(ctx, entity, err)
	}

	created := r.tf.FromAPI(resp)
	if tempID != "" {
		// Replace the placeholder with the authoritative record.
		if err := r.local.Delete(ctx, tempID); err != nil && !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("Failed to purge temporary placeholder",
				"repository", r.name, "id", tempID, "error", err)
		}
	}
	return r.finishSynced(ctx, created)
}

func (r *Repository[T, C, U, A]) finishSynced(ctx context.Context, entity T) outcome {
	entity.Meta().MarkSynced()
	if err := r.local.Save(ctx, entity); err != nil {
		r.logger.Error("Failed to persist reconciled entity",
			"repository", r.name, "id", entity.GetID(), "error", err)
		return outcomeFailed
	}
	return outcomeSynced
}

func (r *Repository[T, C, U, A]) recordFailure(ctx context.Context, entity T, cause error) outcome {
	entity.Meta().MarkPending(cause.Error())
	if err := r.local.Save(ctx, entity); err != nil {
		r.logger.Error("Failed to record sync failure",
			"repository", r.name, "id", entity.GetID(), "error", err)
	}
	r.logger.Warn("Entity reconciliation failed, will retry",
		"repository", r.name, "id", entity.GetID(), "error", cause)
	return outcomeFailed
}

// refreshCache overwrites cache entries with remote data, except entities
// whose local copy is pending: their version wins until reconciled, so
// unsynced edits are never silently lost.
func (r *Repository[T, C, U, A]) refreshCache(ctx context.Context, records []T) {
	for _, entity := range records {
		existing, err := r.local.GetByID(ctx, entity.GetID())
		if err == nil && existing.Meta().PendingSync {
			continue
		}
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			r.logger.Warn("Cache lookup failed during refresh",
				"repository", r.name, "id", entity.GetID(), "error", err)
			continue
		}
		if err := r.local.Save(ctx, entity); err != nil {
			r.logger.Warn("Cache refresh failed for entity",
				"repository", r.name, "id", entity.GetID(), "error", err)
		}
	}
}

func (r *Repository[T, C, U, A]) writeLog(ctx context.Context, log *synclog.SyncLog) {
	if r.logs == nil {
		return
	}
	if err := r.logs.CreateSyncLog(ctx, log); err != nil {
		r.logger.Error("Failed to write sync log", "repository", r.name, "error", err)
	}
}

func withoutDeleted[T store.Entity](records []T) []T {
	kept := make([]T, 0, len(records))
	for _, entity := range records {
		if !entity.Meta().Deleted {
			kept = append(kept, entity)
		}
	}
	return kept
}
