// Package db wires database connections and repositories together.
package db

import (
	"context"
	"database/sql"

	"github.com/todosutiles/kitsync/internal/server/repositories/records"
)

// RepositoryManager exposes the repositories backed by a single database
// connection.
type RepositoryManager interface {
	Conn() *sql.DB
	Records() records.Repository
	RunMigrations(ctx context.Context) error
	Close() error
}
