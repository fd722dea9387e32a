package httpapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/todosutiles/kitsync/internal/logging"
	"github.com/todosutiles/kitsync/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SnapshotFunc produces the full current record set for the feed.
type SnapshotFunc func(ctx context.Context) ([]wire.Record, error)

// Hub manages the websocket snapshot feed. Every subscriber receives the
// full record set on connect and again after every mutation; the feed
// never carries deltas.
type Hub struct {
	snapshot SnapshotFunc
	log      logging.Logger

	mu    sync.Mutex
	conns map[*hubConn]struct{}
}

// hubConn wraps a websocket connection with write serialization.
type hubConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *hubConn) send(msg wire.SnapshotMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func NewHub(snapshot SnapshotFunc, log logging.Logger) *Hub {
	return &Hub{
		snapshot: snapshot,
		log:      log,
		conns:    make(map[*hubConn]struct{}),
	}
}

// Handler upgrades the request and serves the feed until the client
// disconnects.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn(r.Context(), "websocket upgrade failed", "error", err)
			return
		}

		c := &hubConn{conn: conn}

		h.mu.Lock()
		h.conns[c] = struct{}{}
		h.mu.Unlock()

		defer func() {
			h.remove(c)
			_ = conn.Close()
		}()

		if err := h.push(r.Context(), c); err != nil {
			return
		}

		// Subscribers never send application data; the read loop only
		// detects disconnects and handles control frames.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}

// Broadcast pushes the current snapshot to every subscriber. Connections
// whose writes fail are dropped.
func (h *Hub) Broadcast(ctx context.Context) {
	h.mu.Lock()
	conns := make([]*hubConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	if len(conns) == 0 {
		return
	}

	msg, err := h.snapshotMessage(ctx)
	if err != nil {
		h.log.Error(ctx, "snapshot failed", "error", err)
		msg = wire.SnapshotMessage{Type: wire.MessageError, Error: "snapshot unavailable"}
	}

	for _, c := range conns {
		if err := c.send(msg); err != nil {
			h.remove(c)
			_ = c.conn.Close()
		}
	}
}

// push sends the current snapshot to a single subscriber.
func (h *Hub) push(ctx context.Context, c *hubConn) error {
	msg, err := h.snapshotMessage(ctx)
	if err != nil {
		h.log.Error(ctx, "snapshot failed", "error", err)
		return c.send(wire.SnapshotMessage{Type: wire.MessageError, Error: "snapshot unavailable"})
	}
	return c.send(msg)
}

func (h *Hub) snapshotMessage(ctx context.Context) (wire.SnapshotMessage, error) {
	records, err := h.snapshot(ctx)
	if err != nil {
		return wire.SnapshotMessage{}, err
	}
	return wire.SnapshotMessage{Type: wire.MessageSnapshot, Records: records}, nil
}

func (h *Hub) remove(c *hubConn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}
