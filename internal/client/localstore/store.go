// Package localstore is the client's durable key-value store: a sqlite
// table of named JSON slots standing in for the browser's local storage.
// It holds the cache snapshot and both offline queues.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/todosutiles/kitsync/internal/dbx"
	"github.com/todosutiles/kitsync/internal/logging"
)

// Store persists JSON values under named slots. Operations are local and
// synchronous; failures are returned to the caller, which is expected to
// log them and carry on rather than crash.
type Store struct {
	db  dbx.DBTX
	log logging.Logger
}

func New(db dbx.DBTX, log logging.Logger) *Store {
	return &Store{db: db, log: log}
}

// Save serializes value and upserts it into the given slot.
func (s *Store) Save(ctx context.Context, slot string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize slot %s: %w", slot, err)
	}

	query := `INSERT INTO kv (slot, value) VALUES (?, ?)
		ON CONFLICT(slot) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, query, slot, string(data)); err != nil {
		return fmt.Errorf("failed to save slot %s: %w", slot, err)
	}
	return nil
}

// Remove clears a slot. Removing a missing slot is not an error.
func (s *Store) Remove(ctx context.Context, slot string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE slot = ?`, slot); err != nil {
		return fmt.Errorf("failed to remove slot %s: %w", slot, err)
	}
	return nil
}

// Load deserializes the value stored under slot. A missing slot returns
// (zero, false, nil). Corrupt data is logged and treated exactly like a
// missing slot, never surfaced as an error.
func Load[T any](ctx context.Context, s *Store, slot string) (T, bool, error) {
	var zero T

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE slot = ?`, slot).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("failed to read slot %s: %w", slot, err)
	}

	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		s.log.Warn(ctx, "discarding corrupt slot", "slot", slot, "error", err)
		return zero, false, nil
	}
	return value, true, nil
}
