package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/tasknest/internal/loggy"
	"github.com/tildaslashalef/tasknest/internal/store"
	"github.com/tildaslashalef/tasknest/internal/synclog"
	"github.com/tildaslashalef/tasknest/internal/ulid"
)

// fakeEntity is the minimal syncable record the engine tests run on
type fakeEntity struct {
	ID   string
	Name string

	store.SyncMeta
}

func (e *fakeEntity) GetID() string         { return e.ID }
func (e *fakeEntity) SetID(id string)       { e.ID = id }
func (e *fakeEntity) Meta() *store.SyncMeta { return &e.SyncMeta }

func (e *fakeEntity) clone() *fakeEntity {
	c := *e
	return &c
}

type createInput struct {
	Name string
}

type updateInput struct {
	Name *string
}

type apiEntity struct {
	ID        string
	Name      string
	Deleted   bool
	UpdatedAt time.Time
}

// fakeLocal is an in-memory store.Local implementation. It stores copies
// so engine-side mutation after a read cannot leak into the "database".
type fakeLocal struct {
	mu      sync.Mutex
	records map[string]*fakeEntity

	saveErr error
}

func newFakeLocal() *fakeLocal {
	return &fakeLocal{records: map[string]*fakeEntity{}}
}

func (l *fakeLocal) GetAll(_ context.Context) ([]*fakeEntity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*fakeEntity, 0, len(l.records))
	for _, e := range l.records {
		out = append(out, e.clone())
	}
	return out, nil
}

func (l *fakeLocal) GetByID(_ context.Context, id string) (*fakeEntity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return e.clone(), nil
}

func (l *fakeLocal) Create(_ context.Context, record *fakeEntity) (*fakeEntity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[record.ID]; ok {
		return nil, store.ErrAlreadyExists
	}
	l.records[record.ID] = record.clone()
	return record, nil
}

func (l *fakeLocal) Update(_ context.Context, id string, record *fakeEntity) (*fakeEntity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[id]; !ok {
		return nil, store.ErrNotFound
	}
	l.records[id] = record.clone()
	return record, nil
}

func (l *fakeLocal) Delete(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[id]; !ok {
		return store.ErrNotFound
	}
	delete(l.records, id)
	return nil
}

func (l *fakeLocal) Save(_ context.Context, record *fakeEntity) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.saveErr != nil {
		return l.saveErr
	}
	l.records[record.ID] = record.clone()
	return nil
}

func (l *fakeLocal) ListPending(_ context.Context) ([]*fakeEntity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*fakeEntity
	for _, e := range l.records {
		if e.PendingSync {
			out = append(out, e.clone())
		}
	}
	return out, nil
}

// fakeRemote is an in-memory store.Adapter implementation with error and
// blocking injection for exercising failure and concurrency paths.
type fakeRemote struct {
	mu      sync.Mutex
	records map[string]apiEntity
	nextID  int

	createErr    error
	updateErrs   map[string]error
	createCalls  atomic.Int32
	updateCalls  atomic.Int32
	createEnter  chan struct{} // signaled when Create is entered, if set
	createResume chan struct{} // Create blocks on this until closed, if set
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		records:    map[string]apiEntity{},
		updateErrs: map[string]error{},
	}
}

func (r *fakeRemote) GetAll(_ context.Context) ([]apiEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]apiEntity, 0, len(r.records))
	for _, a := range r.records {
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeRemote) GetByID(_ context.Context, id string) (apiEntity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.records[id]
	if !ok {
		return apiEntity{}, store.ErrNotFound
	}
	return a, nil
}

func (r *fakeRemote) Create(_ context.Context, record apiEntity) (apiEntity, error) {
	if r.createEnter != nil {
		r.createEnter <- struct{}{}
	}
	if r.createResume != nil {
		<-r.createResume
	}
	r.createCalls.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return apiEntity{}, r.createErr
	}
	if record.ID == "" {
		r.nextID++
		record.ID = fmt.Sprintf("r-%d", r.nextID)
	}
	record.UpdatedAt = time.Now().UTC()
	r.records[record.ID] = record
	return record, nil
}

func (r *fakeRemote) Update(_ context.Context, id string, record apiEntity) (apiEntity, error) {
	r.updateCalls.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.updateErrs[id]; err != nil {
		return apiEntity{}, err
	}
	if _, ok := r.records[id]; !ok {
		return apiEntity{}, store.ErrNotFound
	}
	record.ID = id
	record.UpdatedAt = time.Now().UTC()
	r.records[id] = record
	return record, nil
}

func (r *fakeRemote) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	return nil
}

type fakeMonitor struct {
	online atomic.Bool
}

func (m *fakeMonitor) IsOnline() bool             { return m.online.Load() }
func (m *fakeMonitor) OnChange(func(bool)) func() { return func() {} }

func (m *fakeMonitor) TestConnection(_ context.Context) error {
	if m.online.Load() {
		return nil
	}
	return store.ErrUnavailable
}

func testTransforms() Transforms[*fakeEntity, createInput, updateInput, apiEntity] {
	return Transforms[*fakeEntity, createInput, updateInput, apiEntity]{
		FromAPI: func(a apiEntity) *fakeEntity {
			e := &fakeEntity{ID: a.ID, Name: a.Name}
			e.SyncMeta.Deleted = a.Deleted
			e.SyncMeta.LastUpdated = a.UpdatedAt
			return e
		},
		ToAPI: func(e *fakeEntity) apiEntity {
			return apiEntity{ID: e.ID, Name: e.Name, Deleted: e.SyncMeta.Deleted}
		},
		FromCreate: func(in createInput) *fakeEntity {
			return &fakeEntity{Name: in.Name}
		},
		ApplyUpdate: func(e *fakeEntity, in updateInput) *fakeEntity {
			if in.Name != nil {
				e.Name = *in.Name
			}
			return e
		},
	}
}

func newTestRepository() (*Repository[*fakeEntity, createInput, updateInput, apiEntity], *fakeLocal, *fakeRemote, *fakeMonitor) {
	local := newFakeLocal()
	remote := newFakeRemote()
	monitor := &fakeMonitor{}
	repo := New("widgets", local, remote, monitor, testTransforms(), nil, loggy.NewNoopLogger())
	return repo, local, remote, monitor
}

func TestCreateOnline(t *testing.T) {
	repo, local, remote, monitor := newTestRepository()
	monitor.online.Store(true)
	ctx := context.Background()

	created, err := repo.Create(ctx, createInput{Name: "first"})
	require.NoError(t, err)

	assert.Equal(t, "r-1", created.ID, "server assigns the authoritative id")
	assert.False(t, created.PendingSync)

	cached, err := local.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "first", cached.Name, "created entity mirrored into cache")

	assert.Len(t, remote.records, 1)
}

func TestCreateOffline(t *testing.T) {
	repo, local, _, _ := newTestRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, createInput{Name: "offline"})
	require.NoError(t, err)

	assert.True(t, ulid.IsTempID(created.ID), "offline create gets a temporary id")
	assert.True(t, created.PendingSync)
	assert.Empty(t, created.SyncError, "offline is not a failure")

	cached, err := local.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, cached.PendingSync)
}

func TestCreateRemoteFailureFallsBackLocal(t *testing.T) {
	repo, _, remote, monitor := newTestRepository()
	monitor.online.Store(true)
	remote.createErr = errors.New("boom")
	ctx := context.Background()

	created, err := repo.Create(ctx, createInput{Name: "degraded"})
	require.NoError(t, err, "remote failure degrades to a local write, not an error")

	assert.True(t, ulid.IsTempID(created.ID))
	assert.True(t, created.PendingSync)
	assert.Contains(t, created.SyncError, "boom")
}

func TestOfflineCreateRoundTrip(t *testing.T) {
	repo, local, remote, monitor := newTestRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, createInput{Name: "roundtrip"})
	require.NoError(t, err)
	tempID := created.ID
	require.True(t, ulid.IsTempID(tempID))

	monitor.online.Store(true)

	result, err := repo.Sync(ctx, synclog.SyncTypeManual)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Synced)
	assert.Zero(t, result.Failed)

	// The placeholder is purged and the record lives under the remote id.
	_, err = local.GetByID(ctx, tempID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	reconciled, err := local.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", reconciled.Name)
	assert.False(t, reconciled.PendingSync)

	// The temp id never reached the server as a key.
	remoteCopy, err := remote.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", remoteCopy.Name)
}

func TestSyncIdempotent(t *testing.T) {
	repo, _, remote, monitor := newTestRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, createInput{Name: "once"})
	require.NoError(t, err)

	monitor.online.Store(true)

	first, err := repo.Sync(ctx, synclog.SyncTypeManual)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Synced)

	second, err := repo.Sync(ctx, synclog.SyncTypeManual)
	require.NoError(t, err)
	assert.Zero(t, second.Total, "a reconciled entity is not pushed again")
	assert.Equal(t, int32(1), remote.createCalls.Load())
}

func TestSyncSingleFlight(t *testing.T) {
	repo, _, remote, monitor := newTestRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, createInput{Name: "guarded"})
	require.NoError(t, err)

	monitor.online.Store(true)
	remote.createEnter = make(chan struct{}, 1)
	remote.createResume = make(chan struct{})

	var firstResult *SyncResult
	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		firstResult, firstErr = repo.Sync(ctx, synclog.SyncTypeManual)
	}()

	// Wait until the first pass is inside the remote call, then try again.
	<-remote.createEnter
	second, err := repo.Sync(ctx, synclog.SyncTypeManual)
	require.NoError(t, err)
	assert.Nil(t, second, "overlapping sync is a no-op, not queued")

	close(remote.createResume)
	<-done

	require.NoError(t, firstErr)
	require.NotNil(t, firstResult)
	assert.Equal(t, 1, firstResult.Synced)
	assert.Equal(t, int32(1), remote.createCalls.Load(), "no double push")
}

func TestSyncOfflineNoop(t *testing.T) {
	repo, _, _, _ := newTestRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, createInput{Name: "stuck"})
	require.NoError(t, err)

	result, err := repo.Sync(ctx, synclog.SyncTypeManual)
	require.NoError(t, err)
	assert.Nil(t, result, "offline sync does nothing")
}

func TestSyncNotFoundEscalatesToCreate(t *testing.T) {
	repo, local, remote, monitor := newTestRepository()
	ctx := context.Background()

	// A record the server has since lost: real id, locally pending.
	stale := &fakeEntity{ID: "r-9", Name: "ghost"}
	stale.MarkPending("")
	require.NoError(t, local.Save(ctx, stale))

	monitor.online.Store(true)

	result, err := repo.Sync(ctx, synclog.SyncTypeManual)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, int32(1), remote.updateCalls.Load())
	assert.Equal(t, int32(1), remote.createCalls.Load(), "not-found escalates to create")

	recreated, err := local.GetByID(ctx, "r-9")
	require.NoError(t, err)
	assert.Equal(t, "ghost", recreated.Name)
	assert.False(t, recreated.PendingSync)
}

func TestSyncDuplicateAbandoned(t *testing.T) {
	repo, local, remote, monitor := newTestRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, createInput{Name: "twin"})
	require.NoError(t, err)

	monitor.online.Store(true)
	remote.createErr = store.ErrAlreadyExists

	result, err := repo.Sync(ctx, synclog.SyncTypeManual)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Abandoned)
	assert.Zero(t, result.Synced)
	assert.Zero(t, result.Failed)

	// Terminal: the pending flag is cleared so the entity never loops.
	abandoned, err := local.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, abandoned.PendingSync)

	again, err := repo.Sync(ctx, synclog.SyncTypeManual)
	require.NoError(t, err)
	assert.Zero(t, again.Total, "abandoned entity is not retried")
}

func TestSyncPartialFailure(t *testing.T) {
	repo, local, remote, monitor := newTestRepository()
	ctx := context.Background()

	monitor.online.Store(true)
	remote.records["r-1"] = apiEntity{ID: "r-1", Name: "good"}
	remote.records["r-2"] = apiEntity{ID: "r-2", Name: "bad"}

	good := &fakeEntity{ID: "r-1", Name: "good edited"}
	good.MarkPending("")
	require.NoError(t, local.Save(ctx, good))

	bad := &fakeEntity{ID: "r-2", Name: "bad edited"}
	bad.MarkPending("")
	require.NoError(t, local.Save(ctx, bad))

	remote.updateErrs["r-2"] = errors.New("server choked")

	result, err := repo.Sync(ctx, synclog.SyncTypeManual)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Synced)
	assert.Equal(t, 1, result.Failed)

	synced, err := local.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.False(t, synced.PendingSync)

	failed, err := local.GetByID(ctx, "r-2")
	require.NoError(t, err)
	assert.True(t, failed.PendingSync, "failed entity stays queued")
	assert.Contains(t, failed.SyncError, "server choked")
}

func TestUpdateUnknownID(t *testing.T) {
	repo, _, _, monitor := newTestRepository()
	monitor.online.Store(true)

	name := "nope"
	_, err := repo.Update(context.Background(), "missing", updateInput{Name: &name})
	assert.ErrorIs(t, err, store.ErrNotFound, "update never creates")
}

func TestUpdateOffline(t *testing.T) {
	repo, local, _, monitor := newTestRepository()
	ctx := context.Background()

	monitor.online.Store(true)
	seeded := &fakeEntity{ID: "r-1", Name: "original"}
	seeded.MarkSynced()
	require.NoError(t, local.Save(ctx, seeded))

	monitor.online.Store(false)

	name := "edited"
	updated, err := repo.Update(ctx, "r-1", updateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Name)
	assert.True(t, updated.PendingSync)
	assert.Empty(t, updated.SyncError)
}

func TestGetAllRefreshSkipsPending(t *testing.T) {
	repo, local, remote, monitor := newTestRepository()
	ctx := context.Background()
	monitor.online.Store(true)

	remote.records["r-1"] = apiEntity{ID: "r-1", Name: "server version"}

	localEdit := &fakeEntity{ID: "r-1", Name: "local edit"}
	localEdit.MarkPending("")
	require.NoError(t, local.Save(ctx, localEdit))

	_, err := repo.GetAll(ctx)
	require.NoError(t, err)

	// The pending local version survives the cache refresh.
	cached, err := local.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "local edit", cached.Name)
	assert.True(t, cached.PendingSync)
}

func TestGetAllOfflineServesCache(t *testing.T) {
	repo, local, _, _ := newTestRepository()
	ctx := context.Background()

	cached := &fakeEntity{ID: "r-1", Name: "from cache"}
	require.NoError(t, local.Save(ctx, cached))

	records, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "from cache", records[0].Name)
}

func TestGetAllFiltersDeleted(t *testing.T) {
	repo, local, _, _ := newTestRepository()
	ctx := context.Background()

	kept := &fakeEntity{ID: "r-1", Name: "kept"}
	require.NoError(t, local.Save(ctx, kept))

	gone := &fakeEntity{ID: "r-2", Name: "gone"}
	gone.SyncMeta.Deleted = true
	require.NoError(t, local.Save(ctx, gone))

	records, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "r-1", records[0].ID)
}

func TestGetByIDTempSkipsRemote(t *testing.T) {
	repo, local, _, monitor := newTestRepository()
	ctx := context.Background()
	monitor.online.Store(true)

	temp := &fakeEntity{ID: ulid.TempID(), Name: "local only"}
	temp.MarkPending("")
	require.NoError(t, local.Save(ctx, temp))

	got, err := repo.GetByID(ctx, temp.ID)
	require.NoError(t, err)
	assert.Equal(t, "local only", got.Name)
}

func TestDeleteSoft(t *testing.T) {
	repo, local, remote, monitor := newTestRepository()
	ctx := context.Background()
	monitor.online.Store(true)

	remote.records["r-1"] = apiEntity{ID: "r-1", Name: "doomed"}
	seeded := &fakeEntity{ID: "r-1", Name: "doomed"}
	seeded.MarkSynced()
	require.NoError(t, local.Save(ctx, seeded))

	require.NoError(t, repo.Delete(ctx, "r-1"))

	// The row survives with the deleted flag, on both sides.
	cached, err := local.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.True(t, cached.SyncMeta.Deleted)

	remoteCopy, err := remote.GetByID(ctx, "r-1")
	require.NoError(t, err)
	assert.True(t, remoteCopy.Deleted)

	records, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records, "deleted records are filtered from listings")
}

func TestSyncEmitsCompletionEvent(t *testing.T) {
	repo, _, _, monitor := newTestRepository()
	ctx := context.Background()

	_, err := repo.Create(ctx, createInput{Name: "observed"})
	require.NoError(t, err)

	monitor.online.Store(true)

	var events []Event[*fakeEntity]
	unsubscribe := repo.Subscribe(func(ev Event[*fakeEntity]) {
		if ev.Type == EventSyncCompleted {
			events = append(events, ev)
		}
	})
	defer unsubscribe()

	_, err = repo.Sync(ctx, synclog.SyncTypeManual)
	require.NoError(t, err)

	require.Len(t, events, 1)
	require.NotNil(t, events[0].Sync)
	assert.Equal(t, 1, events[0].Sync.Synced)
}

func TestHasPendingChanges(t *testing.T) {
	repo, _, _, _ := newTestRepository()
	ctx := context.Background()

	pending, err := repo.HasPendingChanges(ctx)
	require.NoError(t, err)
	assert.False(t, pending)

	_, err = repo.Create(ctx, createInput{Name: "queued"})
	require.NoError(t, err)

	pending, err = repo.HasPendingChanges(ctx)
	require.NoError(t, err)
	assert.True(t, pending)
}
