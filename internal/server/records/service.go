// Package records implements the server-side registry service: record
// creation, field edits and listing, with change notification for the
// snapshot feed.
package records

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/todosutiles/kitsync/internal/common"
	"github.com/todosutiles/kitsync/internal/logging"
	"github.com/todosutiles/kitsync/internal/server/models"
	recrepo "github.com/todosutiles/kitsync/internal/server/repositories/records"
)

// editableFields are the record fields a client may patch individually.
var editableFields = map[string]struct{}{
	"name":      {},
	"age":       {},
	"school":    {},
	"sector":    {},
	"gender":    {},
	"delivered": {},
}

type Service struct {
	repo recrepo.Repository
	log  logging.Logger
	now  func() time.Time

	mu        sync.Mutex
	listeners []func()
}

func NewService(repo recrepo.Repository, log logging.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// OnChange registers fn to run after every successful mutation.
func (s *Service) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Service) notify() {
	s.mu.Lock()
	listeners := make([]func(), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Create validates and stores a new record. The server always assigns a
// fresh id; any id submitted by the client is discarded so that replayed
// offline writes never collide.
func (s *Service) Create(ctx context.Context, record models.Record) (models.Record, error) {
	if strings.TrimSpace(record.Name) == "" {
		return models.Record{}, fmt.Errorf("%w: name is required", common.ErrorInvalidRecord)
	}
	if record.Age < 0 {
		return models.Record{}, fmt.Errorf("%w: age must not be negative", common.ErrorInvalidRecord)
	}

	record.ID = uuid.NewString()
	if record.RegisteredAt == "" {
		record.RegisteredAt = s.now().UTC().Format(time.RFC3339)
	}

	if err := s.repo.Insert(ctx, record); err != nil {
		return models.Record{}, err
	}

	s.log.Info(ctx, "record created", "id", record.ID, "name", record.Name)
	s.notify()
	return record, nil
}

// UpdateField patches a single whitelisted field of an existing record.
func (s *Service) UpdateField(ctx context.Context, id string, field string, value any) (models.Record, error) {
	if _, ok := editableFields[field]; !ok {
		return models.Record{}, fmt.Errorf("%w: %q", common.ErrorInvalidField, field)
	}

	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Record{}, err
	}

	if err := applyField(&record, field, value); err != nil {
		return models.Record{}, err
	}

	if err := s.repo.Update(ctx, record); err != nil {
		return models.Record{}, err
	}

	s.log.Info(ctx, "record updated", "id", id, "field", field)
	s.notify()
	return record, nil
}

// List returns all records, newest registration first.
func (s *Service) List(ctx context.Context) ([]models.Record, error) {
	return s.repo.SelectAll(ctx)
}

// applyField coerces value into the field's type. Numbers arrive as
// float64 when decoded from JSON.
func applyField(record *models.Record, field string, value any) error {
	invalid := func() error {
		return fmt.Errorf("%w: unexpected value %v for %q", common.ErrorInvalidField, value, field)
	}

	switch field {
	case "age":
		switch v := value.(type) {
		case float64:
			record.Age = int(v)
		case int:
			record.Age = v
		default:
			return invalid()
		}
		if record.Age < 0 {
			return fmt.Errorf("%w: age must not be negative", common.ErrorInvalidRecord)
		}
	case "delivered":
		v, ok := value.(bool)
		if !ok {
			return invalid()
		}
		record.Delivered = v
	default:
		v, ok := value.(string)
		if !ok {
			return invalid()
		}
		switch field {
		case "name":
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%w: name is required", common.ErrorInvalidRecord)
			}
			record.Name = v
		case "school":
			record.School = v
		case "sector":
			record.Sector = v
		case "gender":
			record.Gender = v
		}
	}
	return nil
}
