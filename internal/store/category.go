package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pixelvault/apiserver/types"
)

// CategoryRepository handles persistence for categories.
type CategoryRepository struct {
	db *sql.DB
}

func NewCategoryRepository(db *sql.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categorySelect = `
		SELECT c.id, c.name, c.description,
			(SELECT COUNT(1) FROM images i WHERE i.category_id = c.id),
			c.created_at, c.updated_at
		FROM categories c`

func scanCategory(row rowScanner) (types.Category, error) {
	var category types.Category
	err := row.Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.ImageCount,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Category{}, ErrNotFound
		}
		return types.Category{}, err
	}
	return category, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]types.Category, error) {
	rows, err := r.db.QueryContext(ctx, categorySelect+` ORDER BY LOWER(c.name)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []types.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

func (r *CategoryRepository) Get(ctx context.Context, id uuid.UUID) (types.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx, categorySelect+` WHERE c.id = $1`, id))
}

func (r *CategoryRepository) GetByName(ctx context.Context, name string) (types.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx, categorySelect+` WHERE LOWER(c.name) = LOWER($1)`, name))
}

func (r *CategoryRepository) Create(ctx context.Context, category types.Category) (types.Category, error) {
	now := time.Now().UTC()
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	category.CreatedAt = now
	category.UpdatedAt = now

	const query = `
		INSERT INTO categories (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query,
		category.ID, category.Name, category.Description, category.CreatedAt, category.UpdatedAt,
	); err != nil {
		return types.Category{}, translate(err)
	}
	return category, nil
}

func (r *CategoryRepository) Update(ctx context.Context, category types.Category) (types.Category, error) {
	category.UpdatedAt = time.Now().UTC()

	const query = `UPDATE categories SET name = $1, description = $2, updated_at = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, category.Name, category.Description, category.UpdatedAt, category.ID)
	if err != nil {
		return types.Category{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Category{}, err
	}
	if affected == 0 {
		return types.Category{}, ErrNotFound
	}
	return category, nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM categories WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
