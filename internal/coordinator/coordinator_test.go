package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/tasknest/internal/loggy"
	"github.com/tildaslashalef/tasknest/internal/repository"
	"github.com/tildaslashalef/tasknest/internal/synclog"
)

// fakeSyncer records the sync passes triggered on it
type fakeSyncer struct {
	name    string
	pending bool
	syncErr error

	mu     sync.Mutex
	passes []synclog.SyncType
	synced chan struct{}
}

func newFakeSyncer(name string, pending bool) *fakeSyncer {
	return &fakeSyncer{name: name, pending: pending, synced: make(chan struct{}, 8)}
}

func (s *fakeSyncer) Name() string { return s.name }

func (s *fakeSyncer) HasPendingChanges(_ context.Context) (bool, error) {
	return s.pending, nil
}

func (s *fakeSyncer) Sync(_ context.Context, syncType synclog.SyncType) (*repository.SyncResult, error) {
	s.mu.Lock()
	s.passes = append(s.passes, syncType)
	s.mu.Unlock()
	s.synced <- struct{}{}

	if s.syncErr != nil {
		return nil, s.syncErr
	}
	return &repository.SyncResult{Total: 1, Synced: 1}, nil
}

func (s *fakeSyncer) passTypes() []synclog.SyncType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]synclog.SyncType, len(s.passes))
	copy(out, s.passes)
	return out
}

// fakeMonitor lets tests drive connectivity transitions by hand
type fakeMonitor struct {
	mu     sync.Mutex
	online bool
	subs   []func(bool)
}

func (m *fakeMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *fakeMonitor) OnChange(fn func(bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
	return func() {}
}

func (m *fakeMonitor) TestConnection(_ context.Context) error { return nil }

func (m *fakeMonitor) setOnline(online bool) {
	m.mu.Lock()
	m.online = online
	subs := make([]func(bool), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
}

func TestSyncNowRunsAllRepositories(t *testing.T) {
	monitor := &fakeMonitor{online: true}
	coord := New(monitor, time.Hour, loggy.NewNoopLogger())

	tasks := newFakeSyncer("tasks", true)
	notes := newFakeSyncer("notes", false)
	coord.Register(tasks)
	coord.Register(notes)

	outcomes := coord.SyncNow(context.Background())
	require.Len(t, outcomes, 2)
	assert.Equal(t, "tasks", outcomes[0].Repository)
	assert.Equal(t, "notes", outcomes[1].Repository)

	assert.Equal(t, []synclog.SyncType{synclog.SyncTypeManual}, tasks.passTypes())
	assert.Equal(t, []synclog.SyncType{synclog.SyncTypeManual}, notes.passTypes())
}

func TestSyncNowCollectsFailures(t *testing.T) {
	monitor := &fakeMonitor{online: true}
	coord := New(monitor, time.Hour, loggy.NewNoopLogger())

	broken := newFakeSyncer("tasks", true)
	broken.syncErr = errors.New("remote exploded")
	healthy := newFakeSyncer("notes", true)
	coord.Register(broken)
	coord.Register(healthy)

	outcomes := coord.SyncNow(context.Background())
	require.Len(t, outcomes, 2)
	assert.Error(t, outcomes[0].Err)
	assert.NoError(t, outcomes[1].Err, "one repository's failure does not block the rest")
	require.NotNil(t, outcomes[1].Result)
	assert.Equal(t, 1, outcomes[1].Result.Synced)
}

func TestOnlineTransitionSyncsPendingRepositories(t *testing.T) {
	monitor := &fakeMonitor{}
	coord := New(monitor, time.Hour, loggy.NewNoopLogger())

	pending := newFakeSyncer("tasks", true)
	idle := newFakeSyncer("notes", false)
	coord.Register(pending)
	coord.Register(idle)

	coord.Start()
	defer coord.Stop()

	monitor.setOnline(true)

	select {
	case <-pending.synced:
	case <-time.After(time.Second):
		t.Fatal("pending repository was not synced after connectivity restoration")
	}

	assert.Equal(t, []synclog.SyncType{synclog.SyncTypeConnectivity}, pending.passTypes())
	assert.Empty(t, idle.passTypes(), "repositories without pending work are skipped")
}

func TestOfflineTransitionDoesNothing(t *testing.T) {
	monitor := &fakeMonitor{online: true}
	coord := New(monitor, time.Hour, loggy.NewNoopLogger())

	pending := newFakeSyncer("tasks", true)
	coord.Register(pending)

	coord.Start()
	defer coord.Stop()

	monitor.setOnline(false)

	select {
	case <-pending.synced:
		t.Fatal("going offline must not trigger a sync")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestIntervalPass(t *testing.T) {
	monitor := &fakeMonitor{online: true}
	coord := New(monitor, 20*time.Millisecond, loggy.NewNoopLogger())

	repo := newFakeSyncer("tasks", true)
	coord.Register(repo)

	coord.Start()
	defer coord.Stop()

	select {
	case <-repo.synced:
	case <-time.After(time.Second):
		t.Fatal("interval pass never fired")
	}

	types := repo.passTypes()
	require.NotEmpty(t, types)
	assert.Equal(t, synclog.SyncTypeInterval, types[0])
}

func TestStopHaltsIntervalPasses(t *testing.T) {
	monitor := &fakeMonitor{online: true}
	coord := New(monitor, 20*time.Millisecond, loggy.NewNoopLogger())

	repo := newFakeSyncer("tasks", true)
	coord.Register(repo)

	coord.Start()

	select {
	case <-repo.synced:
	case <-time.After(time.Second):
		t.Fatal("interval pass never fired")
	}

	coord.Stop()
	before := len(repo.passTypes())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, before, len(repo.passTypes()), "no passes after Stop")
}
