// Package netmon tracks reachability of the remote store gateway by probing
// a fixed URL on a fixed interval.
package netmon

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/todosutiles/kitsync/internal/logging"
)

const probeTimeout = 3 * time.Second

// Monitor polls a URL and exposes the latest online/offline status. Each
// probe is independent and stateless: any completed HTTP exchange counts as
// online, regardless of status code, because the probe target may not be
// fully inspectable. Only a transport-level failure marks the endpoint
// offline.
type Monitor struct {
	url      string
	interval time.Duration
	client   *http.Client
	log      logging.Logger

	mu     sync.Mutex
	online bool
	subs   map[int]func(bool)
	nextID int
}

func New(url string, interval time.Duration, log logging.Logger) *Monitor {
	return &Monitor{
		url:      url,
		interval: interval,
		client:   &http.Client{},
		log:      log,
		subs:     make(map[int]func(bool)),
	}
}

// Online returns the status observed by the most recent probe.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// OnChange registers fn to be called whenever the status flips. The
// returned function unregisters it; fn never fires after unregistering.
func (m *Monitor) OnChange(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Run probes once immediately and then on every tick until ctx is
// cancelled. Callers are never blocked on a probe; they read Online or
// subscribe with OnChange.
func (m *Monitor) Run(ctx context.Context) {
	m.probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		m.setOnline(ctx, false)
		return
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.setOnline(ctx, false)
		return
	}
	_ = resp.Body.Close()

	m.setOnline(ctx, true)
}

func (m *Monitor) setOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	fns := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	m.log.Info(ctx, "connectivity changed", "online", online)
	for _, fn := range fns {
		fn(online)
	}
}
