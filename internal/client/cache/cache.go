// Package cache maintains the deduplicated, time-sorted view of all known
// records: the merge point between remote snapshots and records that so far
// exist only in the offline queue.
package cache

import (
	"context"
	"sync"

	"github.com/todosutiles/kitsync/internal/client/localstore"
	"github.com/todosutiles/kitsync/internal/client/models"
	"github.com/todosutiles/kitsync/internal/common"
	"github.com/todosutiles/kitsync/internal/logging"
)

// Cache publishes the record snapshot shown to the UI. Every publish path
// runs the same dedup+sort pass, so subscribers never observe duplicates
// or partially sorted data. A mutex serializes every read-modify-write
// against the persisted slot.
type Cache struct {
	store *localstore.Store
	log   logging.Logger

	mu       sync.Mutex
	snapshot []models.Record
	subs     map[int]func([]models.Record)
	nextID   int
}

func New(store *localstore.Store, log logging.Logger) *Cache {
	return &Cache{
		store: store,
		log:   log,
		subs:  make(map[int]func([]models.Record)),
	}
}

// Snapshot returns a copy of the current published record set.
func (c *Cache) Snapshot() []models.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Record, len(c.snapshot))
	copy(out, c.snapshot)
	return out
}

// Subscribe registers fn to receive every newly published snapshot. The
// returned function unregisters it.
func (c *Cache) Subscribe(fn func([]models.Record)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// FilterRange returns the snapshot entries whose registration timestamp
// falls inside [from, to]. Empty bounds are open. This is the read path the
// export collaborator filters on.
func (c *Cache) FilterRange(from, to string) []models.Record {
	var out []models.Record
	for _, r := range c.Snapshot() {
		if r.InRange(from, to) {
			out = append(out, r)
		}
	}
	return out
}

// RefreshFromRemote replaces the cache with the full remote record set.
// The input is deduplicated in its given order (first occurrence per
// composite key wins, so remote iteration order decides which duplicate
// survives), persisted, and republished.
func (c *Cache) RefreshFromRemote(ctx context.Context, records []models.Record) error {
	c.mu.Lock()
	clean := models.DedupeRecords(records)
	models.SortByRegisteredAt(clean)

	err := c.store.Save(ctx, common.CacheSlot, clean)
	if err != nil {
		// Persisting is best effort; the in-memory view still moves forward.
		c.log.Error(ctx, "failed to persist cache", "error", err)
	}
	subs := c.setSnapshotLocked(clean)
	c.mu.Unlock()

	notify(subs, clean)
	return err
}

// LoadFromLocal republishes whatever was last persisted. Used when the
// remote feed is unavailable and after every offline queue change. The
// dedup pass is repeated defensively even though the persisted cache
// should already be clean.
func (c *Cache) LoadFromLocal(ctx context.Context) error {
	c.mu.Lock()
	stored, _, err := localstore.Load[[]models.Record](ctx, c.store, common.CacheSlot)
	if err != nil {
		c.log.Error(ctx, "failed to load cache", "error", err)
		stored = nil
	}

	clean := models.DedupeRecords(stored)
	models.SortByRegisteredAt(clean)
	subs := c.setSnapshotLocked(clean)
	c.mu.Unlock()

	notify(subs, clean)
	return err
}

// RebuildAfterPendingChange refreshes the published snapshot after the
// offline queue changed, so locally queued records become visible without
// waiting for remote confirmation.
func (c *Cache) RebuildAfterPendingChange(ctx context.Context) error {
	return c.LoadFromLocal(ctx)
}

// MergeLocal inserts a locally registered record into the cache unless a
// record from the same submission is already visible. Returns whether the
// record was added.
func (c *Cache) MergeLocal(ctx context.Context, record models.Record) (bool, error) {
	c.mu.Lock()
	stored, _, err := localstore.Load[[]models.Record](ctx, c.store, common.CacheSlot)
	if err != nil {
		c.log.Error(ctx, "failed to load cache", "error", err)
		stored = nil
	}

	for _, r := range stored {
		if r.SameSubmission(record) {
			c.mu.Unlock()
			return false, nil
		}
	}

	merged := append([]models.Record{record}, stored...)
	merged = models.DedupeRecords(merged)
	models.SortByRegisteredAt(merged)

	if err := c.store.Save(ctx, common.CacheSlot, merged); err != nil {
		c.log.Error(ctx, "failed to persist cache", "error", err)
	}
	subs := c.setSnapshotLocked(merged)
	c.mu.Unlock()

	notify(subs, merged)
	return true, nil
}

// setSnapshotLocked stores the new snapshot and returns the subscriber list
// so callers can notify outside the lock. Callers must hold c.mu.
func (c *Cache) setSnapshotLocked(records []models.Record) []func([]models.Record) {
	c.snapshot = records
	subs := make([]func([]models.Record), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func([]models.Record), records []models.Record) {
	for _, fn := range subs {
		out := make([]models.Record, len(records))
		copy(out, records)
		fn(out)
	}
}
