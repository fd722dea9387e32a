package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/todosutiles/kitsync/internal/common"
	"github.com/todosutiles/kitsync/internal/dbx"
	"github.com/todosutiles/kitsync/internal/server/models"
)

// PostgresRepository implements record storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert stores a new record. The caller is responsible for assigning
// the ID.
func (r *PostgresRepository) Insert(ctx context.Context, record models.Record) error {
	query := `
		INSERT INTO records (id, name, age, school, sector, gender, delivered, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.Name, record.Age, record.School, record.Sector,
		record.Gender, record.Delivered, record.RegisteredAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the record with the given id, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (models.Record, error) {
	query := `
		SELECT id, name, age, school, sector, gender, delivered, registered_at
		FROM records WHERE id = $1;
	`
	var record models.Record
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&record.ID, &record.Name, &record.Age, &record.School, &record.Sector,
		&record.Gender, &record.Delivered, &record.RegisteredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, common.ErrorNotFound
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("db error: %w", err)
	}
	return record, nil
}

// Update replaces the stored row for record.ID. Returns
// common.ErrorNotFound when no row matches.
func (r *PostgresRepository) Update(ctx context.Context, record models.Record) error {
	query := `
		UPDATE records
		SET name = $2, age = $3, school = $4, sector = $5, gender = $6,
			delivered = $7, registered_at = $8
		WHERE id = $1;
	`
	res, err := r.db.ExecContext(ctx, query,
		record.ID, record.Name, record.Age, record.School, record.Sector,
		record.Gender, record.Delivered, record.RegisteredAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// SelectAll returns every record ordered by registration timestamp,
// newest first. Ties preserve insertion order via the primary key.
func (r *PostgresRepository) SelectAll(ctx context.Context) ([]models.Record, error) {
	query := `
		SELECT id, name, age, school, sector, gender, delivered, registered_at
		FROM records ORDER BY registered_at DESC, id;
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []models.Record
	for rows.Next() {
		var item models.Record
		if err := rows.Scan(
			&item.ID, &item.Name, &item.Age, &item.School, &item.Sector,
			&item.Gender, &item.Delivered, &item.RegisteredAt,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
