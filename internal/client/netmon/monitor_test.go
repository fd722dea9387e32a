package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/todosutiles/kitsync/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func TestMonitor_ProbeMarksOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	m := New(srv.URL, time.Second, testLogger())
	assert.False(t, m.Online())

	m.probe(context.Background())
	assert.True(t, m.Online())
}

func TestMonitor_NonOKResponseStillCountsAsOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	m := New(srv.URL, time.Second, testLogger())
	m.probe(context.Background())
	assert.True(t, m.Online(), "any completed exchange means reachable")
}

func TestMonitor_ProbeFailureMarksOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close() // nothing listening anymore

	m := New(url, time.Second, testLogger())
	m.online = true

	m.probe(context.Background())
	assert.False(t, m.Online())
}

func TestMonitor_OnChangeFiresOnTransitionsOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)

	m := New(srv.URL, time.Second, testLogger())

	var events []bool
	unsubscribe := m.OnChange(func(online bool) { events = append(events, online) })

	ctx := context.Background()
	m.probe(ctx) // offline -> online
	m.probe(ctx) // still online, no event
	assert.Equal(t, []bool{true}, events)

	unsubscribe()
	srv.Close()
	m.probe(ctx) // online -> offline, but unsubscribed
	assert.Equal(t, []bool{true}, events)
	assert.False(t, m.Online())
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(srv.Close)

	m := New(srv.URL, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	// first probe happens immediately
	assert.Eventually(t, m.Online, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
