// Package coordinator drives reconciliation across all registered
// repositories: on connectivity restoration, on a fixed background
// interval, and on manual request.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/tildaslashalef/tasknest/internal/connectivity"
	"github.com/tildaslashalef/tasknest/internal/loggy"
	"github.com/tildaslashalef/tasknest/internal/repository"
	"github.com/tildaslashalef/tasknest/internal/synclog"
)

// Syncer is the narrow view of a repository engine the coordinator needs.
type Syncer interface {
	Name() string
	HasPendingChanges(ctx context.Context) (bool, error)
	Sync(ctx context.Context, syncType synclog.SyncType) (*repository.SyncResult, error)
}

// Outcome pairs a repository with the result of one triggered pass.
type Outcome struct {
	Repository string
	Result     *repository.SyncResult
	Err        error
}

// Coordinator owns the set of registered repositories and their sync
// scheduling. It is an explicitly constructed component with an explicit
// Start/Stop lifecycle, so tests can build isolated instances.
type Coordinator struct {
	monitor  connectivity.Monitor
	interval time.Duration
	logger   *loggy.Logger

	mu          sync.Mutex
	repos       []Syncer
	started     bool
	unsubscribe func()
	stop        chan struct{}
	done        chan struct{}
}

// New creates a coordinator syncing every interval in the background.
func New(monitor connectivity.Monitor, interval time.Duration, logger *loggy.Logger) *Coordinator {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Coordinator{
		monitor:  monitor,
		interval: interval,
		logger:   logger,
	}
}

// Register adds a repository to the coordinated set.
func (c *Coordinator) Register(s Syncer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos = append(c.repos, s)
}

// Start subscribes to connectivity transitions and begins the periodic
// background pass. Calling Start twice is a no-op.
func (c *Coordinator) Start() {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.unsubscribe = c.monitor.OnChange(func(online bool) {
		if !online {
			return
		}
		c.logger.Info("Connectivity restored, checking for pending work")
		go c.syncPending(context.Background())
	})

	go c.loop()
}

// Stop unsubscribes from the monitor and halts the background pass.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	close(c.stop)
	done := c.done
	c.mu.Unlock()

	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	<-done
}

// SyncNow runs a user-initiated pass on every registered repository and
// returns the per-repository outcomes.
func (c *Coordinator) SyncNow(ctx context.Context) []Outcome {
	return c.syncAll(ctx, synclog.SyncTypeManual)
}

// loop runs the fixed-interval pass regardless of transition events, to
// catch cases where the monitor's flag lagged reality.
func (c *Coordinator) loop() {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.syncAll(context.Background(), synclog.SyncTypeInterval)
		}
	}
}

// syncPending triggers reconciliation only on repositories that report
// pending work; used on connectivity restoration.
func (c *Coordinator) syncPending(ctx context.Context) {
	for _, repo := range c.registered() {
		pending, err := repo.HasPendingChanges(ctx)
		if err != nil {
			c.logger.Error("Failed to check pending work",
				"repository", repo.Name(), "error", err)
			continue
		}
		if !pending {
			continue
		}
		if _, err := repo.Sync(ctx, synclog.SyncTypeConnectivity); err != nil {
			c.logger.Error("Reconciliation failed",
				"repository", repo.Name(), "error", err)
		}
	}
}

func (c *Coordinator) syncAll(ctx context.Context, syncType synclog.SyncType) []Outcome {
	repos := c.registered()
	outcomes := make([]Outcome, 0, len(repos))
	for _, repo := range repos {
		result, err := repo.Sync(ctx, syncType)
		if err != nil {
			// Individual repository failures are logged, not propagated.
			c.logger.Error("Reconciliation failed",
				"repository", repo.Name(), "error", err)
		}
		outcomes = append(outcomes, Outcome{
			Repository: repo.Name(),
			Result:     result,
			Err:        err,
		})
	}
	return outcomes
}

func (c *Coordinator) registered() []Syncer {
	c.mu.Lock()
	defer c.mu.Unlock()
	repos := make([]Syncer, len(c.repos))
	copy(repos, c.repos)
	return repos
}
