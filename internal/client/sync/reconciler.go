// Package sync orchestrates the offline-first flow: it routes writes by
// connectivity, replays the offline queues against the gateway, and keeps
// the record cache aligned with the remote source of truth.
package sync

import (
	"context"

	"github.com/todosutiles/kitsync/internal/client/cache"
	"github.com/todosutiles/kitsync/internal/client/gateway"
	"github.com/todosutiles/kitsync/internal/client/models"
	"github.com/todosutiles/kitsync/internal/client/queue"
	"github.com/todosutiles/kitsync/internal/logging"
)

// Reconciler drains the pending-write queue against the gateway and then
// refreshes the cache from the remote record set.
type Reconciler struct {
	gateway gateway.Gateway
	queue   *queue.Queue
	cache   *cache.Cache
	log     logging.Logger
}

func NewReconciler(gw gateway.Gateway, q *queue.Queue, c *cache.Cache, log logging.Logger) *Reconciler {
	return &Reconciler{gateway: gw, queue: q, cache: c, log: log}
}

// Reconcile replays every queued registration. A single failing record does
// not block the rest of the batch; failed entries are retained in the queue
// for the next pass, only successfully replayed ones are removed. With an
// empty queue the pass is a no-op.
//
// Replay is at-least-once: a crash between a successful create and the
// queue rewrite leaves the replayed entry queued, and the gateway assigns a
// fresh identifier on every create, so such an entry is re-created rather
// than upserted.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	pending, err := r.queue.PendingWrites(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	r.log.Info(ctx, "replaying offline registrations", "count", len(pending))

	var failed []models.PendingWrite
	for _, w := range pending {
		record := w.Record
		record.RemoteID = ""

		if err := r.gateway.Create(ctx, record.ToWire()); err != nil {
			r.log.Error(ctx, "failed to replay registration", "local_id", w.LocalID, "key", w.Key(), "error", err)
			failed = append(failed, w)
		}
	}

	if err := r.queue.ReplaceWrites(ctx, failed); err != nil {
		return err
	}

	r.refreshFromRemote(ctx)
	return nil
}

func (r *Reconciler) refreshFromRemote(ctx context.Context) {
	records, err := r.gateway.List(ctx)
	if err != nil {
		r.log.Warn(ctx, "failed to refresh from remote after replay", "error", err)
		return
	}
	if err := r.cache.RefreshFromRemote(ctx, models.FromWireList(records)); err != nil {
		r.log.Error(ctx, "failed to rebuild cache", "error", err)
	}
}
