// Package gateway is the client side of the remote store contract: create,
// single-field update, full listing, a realtime snapshot subscription and a
// reachability ping. The concrete implementation talks HTTP/websocket; the
// sync core depends only on the interface so tests can substitute a fake.
package gateway

import (
	"context"

	"github.com/todosutiles/kitsync/internal/wire"
)

// Gateway is the remote store gateway as consumed by the sync core.
type Gateway interface {
	// Ping reports whether the gateway is reachable.
	Ping(ctx context.Context) error

	// Create appends a new record; the store assigns the identifier.
	Create(ctx context.Context, record wire.Record) error

	// UpdateField merges a single-field patch into an existing record.
	UpdateField(ctx context.Context, id, field string, value any) error

	// List returns the full current record set.
	List(ctx context.Context) ([]wire.Record, error)

	// Subscribe registers onSnapshot to be invoked with the full current
	// record set every time it changes. The returned function cancels the
	// subscription; onSnapshot never fires after cancellation.
	Subscribe(ctx context.Context, onSnapshot func([]wire.Record)) (func(), error)
}
