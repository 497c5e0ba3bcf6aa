package filtering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	pkgerrors "sieve/pkg/errors"
	"sieve/pkg/metrics"
)

type Repository interface {
	Create(ctx context.Context, f *SavedFilter) error
	Get(ctx context.Context, id string) (*SavedFilter, error)
	List(ctx context.Context, limit, offset int) ([]SavedFilter, error)
	Update(ctx context.Context, f *SavedFilter) error
	Delete(ctx context.Context, id string) error
	// ListStreamFilters returns the enabled stream filters in creation order.
	ListStreamFilters(ctx context.Context) ([]SavedFilter, error)
}

const uniqueViolation = "23505"

const selectColumns = `id, name, description, definition, strict, stream, enabled, created_at, updated_at`

type PostgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, f *SavedFilter) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now

	query := `
		INSERT INTO saved_filters (id, name, description, definition, strict, stream, enabled, created_at, updated_at)
		VALUES (:id, :name, :description, :definition, :strict, :stream, :enabled, :created_at, :updated_at)
	`

	err := r.observe("insert", func() error {
		_, err := r.db.NamedExecContext(ctx, query, f)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nameConflict(err, f.Name)
		}
		return fmt.Errorf("failed to create filter: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*SavedFilter, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	query := `SELECT ` + selectColumns + ` FROM saved_filters WHERE id = $1`

	var f SavedFilter
	err := r.observe("select", func() error {
		return r.db.GetContext(ctx, &f, query, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get filter: %w", err)
	}

	return &f, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]SavedFilter, error) {
	query := `SELECT ` + selectColumns + ` FROM saved_filters ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`

	filters := make([]SavedFilter, 0)
	err := r.observe("select", func() error {
		return r.db.SelectContext(ctx, &filters, query, limit, offset)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list filters: %w", err)
	}

	return filters, nil
}

func (r *PostgresRepository) ListStreamFilters(ctx context.Context) ([]SavedFilter, error) {
	query := `SELECT ` + selectColumns + ` FROM saved_filters WHERE stream = true AND enabled = true ORDER BY created_at ASC, id`

	filters := make([]SavedFilter, 0)
	err := r.observe("select", func() error {
		return r.db.SelectContext(ctx, &filters, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list stream filters: %w", err)
	}

	return filters, nil
}

func (r *PostgresRepository) Update(ctx context.Context, f *SavedFilter) error {
	if _, err := uuid.Parse(f.ID); err != nil {
		return pkgerrors.ErrNotFound.WithDetail("id", f.ID)
	}
	f.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE saved_filters
		SET name = :name, description = :description, definition = :definition,
			strict = :strict, stream = :stream, enabled = :enabled, updated_at = :updated_at
		WHERE id = :id
	`

	var res sql.Result
	err := r.observe("update", func() error {
		var err error
		res, err = r.db.NamedExecContext(ctx, query, f)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nameConflict(err, f.Name)
		}
		return fmt.Errorf("failed to update filter: %w", err)
	}

	return requireAffected(res, f.ID)
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}

	var res sql.Result
	err := r.observe("delete", func() error {
		var err error
		res, err = r.db.ExecContext(ctx, `DELETE FROM saved_filters WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete filter: %w", err)
	}

	return requireAffected(res, id)
}

func (r *PostgresRepository) observe(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ObserveDatabaseQueryDuration("postgres", operation, time.Since(start))

	status := "success"
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		status = "error"
	}
	metrics.IncDatabaseQuery("postgres", operation, status)
	return err
}

func requireAffected(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return pkgerrors.ErrNotFound.WithDetail("id", id)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func nameConflict(err error, name string) error {
	return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("filter with name '%s' already exists", name))
}
