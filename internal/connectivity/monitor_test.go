package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tildaslashalef/tasknest/internal/loggy"
)

func newTestMonitor(t *testing.T, handler http.Handler) (*ProbeMonitor, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	monitor := NewProbeMonitor(server.URL, time.Minute, time.Second, loggy.NewNoopLogger())
	return monitor, server
}

func TestMonitorStartsOffline(t *testing.T) {
	monitor, _ := newTestMonitor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	assert.False(t, monitor.IsOnline(), "monitor is pessimistic until the first probe")
}

func TestProbeFlipsOnline(t *testing.T) {
	monitor, _ := newTestMonitor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	online := monitor.Probe(context.Background())
	assert.True(t, online)
	assert.True(t, monitor.IsOnline())
}

func TestProbeServerError(t *testing.T) {
	monitor, _ := newTestMonitor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	assert.False(t, monitor.Probe(context.Background()))
	assert.False(t, monitor.IsOnline())
}

func TestTestConnectionUnreachable(t *testing.T) {
	monitor, server := newTestMonitor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	err := monitor.TestConnection(context.Background())
	require.Error(t, err)
}

func TestOnChangeNotifiesOncePerTransition(t *testing.T) {
	var mu sync.Mutex
	status := http.StatusOK
	monitor, _ := newTestMonitor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.WriteHeader(status)
	}))

	var transitions []bool
	unsubscribe := monitor.OnChange(func(online bool) {
		transitions = append(transitions, online)
	})
	defer unsubscribe()

	ctx := context.Background()

	// offline -> online fires once; a confirming probe is silent.
	monitor.Probe(ctx)
	monitor.Probe(ctx)
	require.Equal(t, []bool{true}, transitions)

	// online -> offline fires again.
	mu.Lock()
	status = http.StatusServiceUnavailable
	mu.Unlock()
	monitor.Probe(ctx)
	monitor.Probe(ctx)
	assert.Equal(t, []bool{true, false}, transitions)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	monitor, _ := newTestMonitor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	calls := 0
	unsubscribe := monitor.OnChange(func(bool) { calls++ })
	unsubscribe()

	monitor.Probe(context.Background())
	assert.Zero(t, calls)
}

func TestStartStop(t *testing.T) {
	monitor, _ := newTestMonitor(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	monitor.Start()
	monitor.Start() // second Start is a no-op

	// The loop probes immediately; give it a moment.
	require.Eventually(t, monitor.IsOnline, time.Second, 10*time.Millisecond)

	monitor.Stop()
	monitor.Stop() // second Stop is a no-op
}
