package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/todosutiles/kitsync/internal/common"
	"github.com/todosutiles/kitsync/internal/server/models"
	"github.com/todosutiles/kitsync/internal/wire"
)

type errorResponse struct {
	Error string `json:"error"`
}

type archiveResponse struct {
	Key string `json:"key"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.service.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.ToWireList(list))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var record wire.Record
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	created, err := s.service.Create(r.Context(), models.FromWire(record))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created.ToWire())
}

func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	var edit wire.FieldEdit
	if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	updated, err := s.service.UpdateField(r.Context(), r.PathValue("id"), edit.Field, edit.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated.ToWire())
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.archiver == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "archiving is not configured"})
		return
	}

	key, err := s.archiver.Archive(r.Context())
	if err != nil {
		s.log.Error(r.Context(), "archive failed", "error", err)
		s.writeJSON(w, http.StatusBadGateway, errorResponse{Error: "archive failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, archiveResponse{Key: key})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "record not found"})
	case errors.Is(err, common.ErrorInvalidRecord), errors.Is(err, common.ErrorInvalidField):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}
