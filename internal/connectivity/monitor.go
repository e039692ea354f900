// Package connectivity reports whether the device can reach the sync
// server and notifies subscribers when that changes.
package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tildaslashalef/tasknest/internal/loggy"
)

// Monitor exposes the current online state and transition notifications.
// IsOnline is synchronous and best-effort; it may lag real connectivity.
// Callers that need higher confidence use TestConnection, which issues a
// real network request.
type Monitor interface {
	IsOnline() bool
	OnChange(fn func(online bool)) (unsubscribe func())
	TestConnection(ctx context.Context) error
}

// ProbeMonitor implements Monitor by polling a health endpoint at a fixed
// interval. Transition callbacks fire at most once per actual transition;
// polls that confirm the current state are silent.
type ProbeMonitor struct {
	probeURL string
	interval time.Duration
	client   *http.Client
	logger   *loggy.Logger

	mu      sync.Mutex
	online  bool
	subs    map[int]func(bool)
	nextSub int
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewProbeMonitor creates a monitor polling probeURL every interval.
// The monitor starts pessimistic (offline) until the first probe runs.
func NewProbeMonitor(probeURL string, interval time.Duration, timeout time.Duration, logger *loggy.Logger) *ProbeMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ProbeMonitor{
		probeURL: probeURL,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
		subs:     make(map[int]func(bool)),
	}
}

// Start begins background polling. Calling Start twice is a no-op.
func (m *ProbeMonitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	m.mu.Unlock()

	go m.loop()
}

// Stop halts background polling and waits for the poll loop to exit.
func (m *ProbeMonitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
}

// IsOnline returns the last probed state.
func (m *ProbeMonitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers a transition callback and returns its unsubscribe
// function. Callbacks run outside the monitor's lock.
func (m *ProbeMonitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// TestConnection issues a real request against the probe endpoint and
// returns nil only if the server answered with a success status.
func (m *ProbeMonitor) TestConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.probeURL, nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", m.probeURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("probe returned status %d", resp.StatusCode)
	}
	return nil
}

// Probe runs one connectivity check immediately and updates the state,
// notifying subscribers if it flipped. Useful right after construction to
// avoid waiting a full interval for the first reading.
func (m *ProbeMonitor) Probe(ctx context.Context) bool {
	online := m.TestConnection(ctx) == nil
	m.setOnline(online)
	return online
}

func (m *ProbeMonitor) loop() {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	// First reading right away rather than one interval in.
	m.Probe(context.Background())

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Probe(context.Background())
		}
	}
}

func (m *ProbeMonitor) setOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.logger.Info("Connectivity changed", "online", online)
	for _, fn := range subs {
		fn(online)
	}
}
