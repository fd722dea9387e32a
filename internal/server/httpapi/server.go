// Package httpapi exposes the registry over HTTP: a small JSON REST
// surface for record submission and edits, plus a websocket feed that
// pushes the full record set on every change.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/todosutiles/kitsync/internal/logging"
	"github.com/todosutiles/kitsync/internal/server/models"
	"github.com/todosutiles/kitsync/internal/server/records"
	"github.com/todosutiles/kitsync/internal/wire"
)

// Archiver stores a snapshot of the registry in object storage and
// returns the key it was written under.
type Archiver interface {
	Archive(ctx context.Context) (string, error)
}

type Server struct {
	addr     string
	service  *records.Service
	hub      *Hub
	archiver Archiver
	log      logging.Logger

	httpServer *http.Server
}

// NewServer wires the REST handlers and the snapshot hub. archiver may be
// nil, in which case the archive endpoint reports the feature unavailable.
func NewServer(addr string, service *records.Service, archiver Archiver, log logging.Logger) *Server {
	s := &Server{
		addr:     addr,
		service:  service,
		archiver: archiver,
		log:      log,
	}

	s.hub = NewHub(func(ctx context.Context) ([]wire.Record, error) {
		list, err := service.List(ctx)
		if err != nil {
			return nil, err
		}
		return models.ToWireList(list), nil
	}, log)

	service.OnChange(func() {
		s.hub.Broadcast(context.Background())
	})

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/records", s.handleList)
	mux.HandleFunc("POST /api/records", s.handleCreate)
	mux.HandleFunc("PATCH /api/records/{id}", s.handleUpdateField)
	mux.HandleFunc("POST /api/archive", s.handleArchive)
	mux.HandleFunc("GET /ws", s.hub.Handler())
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
