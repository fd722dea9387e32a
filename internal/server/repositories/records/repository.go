// Package records provides PostgreSQL-backed persistence for registry
// records.
package records

import (
	"context"

	"github.com/todosutiles/kitsync/internal/server/models"
)

// Repository abstracts record persistence.
type Repository interface {
	Insert(ctx context.Context, record models.Record) error
	Get(ctx context.Context, id string) (models.Record, error)
	Update(ctx context.Context, record models.Record) error
	SelectAll(ctx context.Context) ([]models.Record, error)
}
