package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/todosutiles/kitsync/internal/client/cache"
	"github.com/todosutiles/kitsync/internal/client/gateway"
	"github.com/todosutiles/kitsync/internal/client/models"
	"github.com/todosutiles/kitsync/internal/client/queue"
	"github.com/todosutiles/kitsync/internal/common"
	"github.com/todosutiles/kitsync/internal/logging"
	"github.com/todosutiles/kitsync/internal/wire"
)

// Connectivity is the signal that gates write routing. Implemented by
// netmon.Monitor.
type Connectivity interface {
	Online() bool
	OnChange(fn func(online bool)) func()
}

// Service is the API the UI layer talks to: snapshot reads, connectivity-
// routed writes and edits, and the reconcile trigger. It owns the remote
// subscription and the queue-to-cache rebuild wiring.
type Service struct {
	gateway    gateway.Gateway
	queue      *queue.Queue
	cache      *cache.Cache
	monitor    Connectivity
	reconciler *Reconciler
	log        logging.Logger
	now        func() time.Time

	mu       sync.Mutex
	cancels  []func()
	wsCancel func()
}

func NewService(gw gateway.Gateway, q *queue.Queue, c *cache.Cache, mon Connectivity, log logging.Logger) *Service {
	return &Service{
		gateway:    gw,
		queue:      q,
		cache:      c,
		monitor:    mon,
		reconciler: NewReconciler(gw, q, c, log),
		log:        log,
		now:        time.Now,
	}
}

// Records returns the current cache snapshot.
func (s *Service) Records() []models.Record {
	return s.cache.Snapshot()
}

// Subscribe registers fn for every newly published snapshot.
func (s *Service) Subscribe(fn func([]models.Record)) func() {
	return s.cache.Subscribe(fn)
}

// FilterRange returns the snapshot entries registered inside [from, to].
func (s *Service) FilterRange(from, to string) []models.Record {
	return s.cache.FilterRange(from, to)
}

// Register stores a new record: directly on the gateway when online, into
// the offline queue otherwise. A direct create that fails falls back to the
// queue so the submission is never lost.
func (s *Service) Register(ctx context.Context, record models.Record) error {
	if record.Name == "" {
		return fmt.Errorf("%w: name is required", common.ErrorInvalidRecord)
	}
	if record.Age < 0 {
		return fmt.Errorf("%w: age must not be negative", common.ErrorInvalidRecord)
	}
	if record.RegisteredAt == "" {
		record.RegisteredAt = s.now().UTC().Format(time.RFC3339)
	}
	record.RemoteID = ""

	if s.monitor.Online() {
		err := s.gateway.Create(ctx, record.ToWire())
		if err == nil {
			return nil
		}
		s.log.Warn(ctx, "direct create failed, queueing offline", "key", record.Key(), "error", err)
	}

	if _, err := s.queue.EnqueueNewRecord(ctx, record); err != nil {
		return err
	}
	return nil
}

// Edit applies a single-field change: directly on the gateway when online,
// into the offline edit queue otherwise. An online failure is returned to
// the caller; the UI surfaces a retry prompt.
func (s *Service) Edit(ctx context.Context, id, field string, value any) error {
	if s.monitor.Online() {
		return s.gateway.UpdateField(ctx, id, field, value)
	}
	return s.queue.EnqueueFieldEdit(ctx, id, field, value)
}

// ReplayPendingEdits applies queued edits in submission order and removes
// the ones that were accepted. Edits are only replayed when the caller
// explicitly retries a save while online; the reconcile pass never drains
// them. A failing edit is kept and does not block the ones after it.
func (s *Service) ReplayPendingEdits(ctx context.Context) error {
	if !s.monitor.Online() {
		return common.ErrOffline
	}

	edits, err := s.queue.PendingEdits(ctx)
	if err != nil {
		return err
	}
	if len(edits) == 0 {
		return nil
	}

	var applied []models.PendingEdit
	for _, e := range edits {
		if err := s.gateway.UpdateField(ctx, e.ID, e.Field, e.Value); err != nil {
			s.log.Error(ctx, "failed to replay edit", "id", e.ID, "field", e.Field, "error", err)
			continue
		}
		applied = append(applied, e)
	}

	return s.queue.RemoveReconciledEdits(ctx, applied)
}

// ReconcileNow runs a reconciliation pass immediately.
func (s *Service) ReconcileNow(ctx context.Context) error {
	return s.reconciler.Reconcile(ctx)
}

// Start wires the ongoing flows: queue changes rebuild the cache,
// connectivity transitions trigger reconciliation (or a fall-back to the
// persisted cache), and the remote snapshot feed keeps the cache fresh.
// It also performs the initial data load. Callbacks stop when ctx is
// cancelled.
func (s *Service) Start(ctx context.Context) {
	s.addCancel(s.queue.OnChange(func() {
		if err := s.cache.RebuildAfterPendingChange(ctx); err != nil {
			s.log.Error(ctx, "failed to rebuild cache after queue change", "error", err)
		}
	}))

	s.addCancel(s.monitor.OnChange(func(online bool) {
		if !online {
			if err := s.cache.LoadFromLocal(ctx); err != nil {
				s.log.Error(ctx, "failed to load cache", "error", err)
			}
			return
		}

		if err := s.reconciler.Reconcile(ctx); err != nil {
			s.log.Error(ctx, "reconciliation failed", "error", err)
		}
		s.subscribeRemote(ctx)
	}))

	// Initial load: prefer the live remote set, fall back to whatever was
	// last persisted.
	if err := s.gateway.Ping(ctx); err == nil {
		if err := s.reconciler.Reconcile(ctx); err != nil {
			s.log.Error(ctx, "reconciliation failed", "error", err)
		}
		if records, err := s.gateway.List(ctx); err == nil {
			if err := s.cache.RefreshFromRemote(ctx, models.FromWireList(records)); err != nil {
				s.log.Error(ctx, "failed to refresh cache", "error", err)
			}
		}
		s.subscribeRemote(ctx)
	} else {
		s.log.Warn(ctx, "starting offline", "error", err)
		if err := s.cache.LoadFromLocal(ctx); err != nil {
			s.log.Error(ctx, "failed to load cache", "error", err)
		}
	}

	go func() {
		<-ctx.Done()
		s.Close()
	}()
}

// Close cancels the subscriptions Start registered.
func (s *Service) Close() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	if s.wsCancel != nil {
		cancels = append(cancels, s.wsCancel)
		s.wsCancel = nil
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (s *Service) addCancel(cancel func()) {
	s.mu.Lock()
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()
}

// subscribeRemote (re-)attaches the snapshot feed. A previous subscription,
// dead or alive, is cancelled first so at most one feed drives the cache.
func (s *Service) subscribeRemote(ctx context.Context) {
	s.mu.Lock()
	prev := s.wsCancel
	s.wsCancel = nil
	s.mu.Unlock()
	if prev != nil {
		prev()
	}

	cancel, err := s.gateway.Subscribe(ctx, func(records []wire.Record) {
		if err := s.cache.RefreshFromRemote(ctx, models.FromWireList(records)); err != nil {
			s.log.Error(ctx, "failed to refresh cache from snapshot", "error", err)
		}
	})
	if err != nil {
		s.log.Warn(ctx, "snapshot subscription unavailable", "error", err)
		return
	}

	s.mu.Lock()
	s.wsCancel = cancel
	s.mu.Unlock()
}
