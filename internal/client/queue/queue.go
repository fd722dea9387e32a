// Package queue buffers record registrations and field edits made while the
// gateway is unreachable, and makes queued records visible in the cache
// before remote confirmation.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/todosutiles/kitsync/internal/client/cache"
	"github.com/todosutiles/kitsync/internal/client/localstore"
	"github.com/todosutiles/kitsync/internal/client/models"
	"github.com/todosutiles/kitsync/internal/common"
	"github.com/todosutiles/kitsync/internal/logging"
)

// Queue is the durable offline write buffer. Two independent queues live in
// their own storage slots: new-record submissions and single-field edits.
// A mutex serializes every read-modify-write cycle.
type Queue struct {
	store *localstore.Store
	cache *cache.Cache
	log   logging.Logger
	now   func() time.Time

	mu     sync.Mutex
	subs   map[int]func()
	nextID int
}

func New(store *localstore.Store, c *cache.Cache, log logging.Logger) *Queue {
	return &Queue{
		store: store,
		cache: c,
		log:   log,
		now:   time.Now,
		subs:  make(map[int]func()),
	}
}

// OnChange registers fn to be called after every queue mutation. The
// returned function unregisters it.
func (q *Queue) OnChange(fn func()) func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextID
	q.nextID++
	q.subs[id] = fn

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.subs, id)
	}
}

// EnqueueNewRecord buffers a record registered while offline. An exact
// duplicate of an already queued submission (same name, age and
// registration timestamp) is silently dropped; double-submits from retried
// form actions are not an error. Independently, the record is merged into
// the visible cache so the UI reflects it immediately.
func (q *Queue) EnqueueNewRecord(ctx context.Context, record models.Record) (bool, error) {
	q.mu.Lock()
	pending, _, err := localstore.Load[[]models.PendingWrite](ctx, q.store, common.PendingWritesSlot)
	if err != nil {
		q.mu.Unlock()
		return false, fmt.Errorf("failed to load pending writes: %w", err)
	}

	queued := false
	for _, p := range pending {
		if p.SameSubmission(record) {
			queued = true
			break
		}
	}

	if !queued {
		entry := models.PendingWrite{LocalID: models.NewLocalID(q.now()), Record: record}
		pending = append(pending, entry)
		if err := q.store.Save(ctx, common.PendingWritesSlot, pending); err != nil {
			q.mu.Unlock()
			return false, fmt.Errorf("failed to persist pending writes: %w", err)
		}
		q.log.Debug(ctx, "queued offline registration", "local_id", entry.LocalID, "key", record.Key())
	}
	q.mu.Unlock()

	// Cache merge happens regardless of the pending dedup outcome; the
	// cache applies its own duplicate check.
	if _, err := q.cache.MergeLocal(ctx, record); err != nil {
		q.log.Error(ctx, "failed to merge queued record into cache", "error", err)
	}

	if !queued {
		q.notify()
	}
	return !queued, nil
}

// EnqueueFieldEdit buffers a single-field mutation. Edits are appended
// unconditionally: later edits to the same field must all survive until
// reconciliation confirms which was applied last.
func (q *Queue) EnqueueFieldEdit(ctx context.Context, id, field string, value any) error {
	q.mu.Lock()
	edits, _, err := localstore.Load[[]models.PendingEdit](ctx, q.store, common.PendingEditsSlot)
	if err != nil {
		q.mu.Unlock()
		return fmt.Errorf("failed to load pending edits: %w", err)
	}

	edits = append(edits, models.PendingEdit{ID: id, Field: field, Value: value})
	if err := q.store.Save(ctx, common.PendingEditsSlot, edits); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("failed to persist pending edits: %w", err)
	}
	q.mu.Unlock()

	q.notify()
	return nil
}

// PendingWrites returns the queued record submissions.
func (q *Queue) PendingWrites(ctx context.Context) ([]models.PendingWrite, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending, _, err := localstore.Load[[]models.PendingWrite](ctx, q.store, common.PendingWritesSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending writes: %w", err)
	}
	return pending, nil
}

// PendingEdits returns the queued field edits in submission order.
func (q *Queue) PendingEdits(ctx context.Context) ([]models.PendingEdit, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	edits, _, err := localstore.Load[[]models.PendingEdit](ctx, q.store, common.PendingEditsSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending edits: %w", err)
	}
	return edits, nil
}

// ReplaceWrites persists the given set as the new pending-write queue.
// The reconciler calls this with the entries that failed to replay, so
// failed registrations survive for the next pass.
func (q *Queue) ReplaceWrites(ctx context.Context, remaining []models.PendingWrite) error {
	q.mu.Lock()
	if remaining == nil {
		remaining = []models.PendingWrite{}
	}
	if err := q.store.Save(ctx, common.PendingWritesSlot, remaining); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("failed to persist pending writes: %w", err)
	}
	q.mu.Unlock()

	q.notify()
	return nil
}

// RemoveReconciledEdits drops the exact (id, field, value) tuples that were
// just replayed. Filtering is by value, not position, so an edit enqueued
// concurrently during the replay window is preserved.
func (q *Queue) RemoveReconciledEdits(ctx context.Context, applied []models.PendingEdit) error {
	q.mu.Lock()
	edits, _, err := localstore.Load[[]models.PendingEdit](ctx, q.store, common.PendingEditsSlot)
	if err != nil {
		q.mu.Unlock()
		return fmt.Errorf("failed to load pending edits: %w", err)
	}

	remaining := make([]models.PendingEdit, 0, len(edits))
	for _, e := range edits {
		replayed := false
		for _, a := range applied {
			if e.Equal(a) {
				replayed = true
				break
			}
		}
		if !replayed {
			remaining = append(remaining, e)
		}
	}

	if err := q.store.Save(ctx, common.PendingEditsSlot, remaining); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("failed to persist pending edits: %w", err)
	}
	q.mu.Unlock()

	q.notify()
	return nil
}

func (q *Queue) notify() {
	q.mu.Lock()
	fns := make([]func(), 0, len(q.subs))
	for _, fn := range q.subs {
		fns = append(fns, fn)
	}
	q.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}
