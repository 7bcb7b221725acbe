package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pixelvault/apiserver/types"
)

// CollectionRepository handles persistence for collections and their members.
type CollectionRepository struct {
	db *sql.DB
}

func NewCollectionRepository(db *sql.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

func (r *CollectionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]types.Collection, error) {
	const query = `
		SELECT id, user_id, name, description, created_at, updated_at
		FROM collections
		WHERE user_id = $1
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collections := []types.Collection{}
	for rows.Next() {
		var c types.Collection
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range collections {
		ids, err := r.imageIDs(ctx, collections[i].ID)
		if err != nil {
			return nil, err
		}
		collections[i].ImageIDs = ids
	}
	return collections, nil
}

func (r *CollectionRepository) Get(ctx context.Context, id uuid.UUID) (types.Collection, error) {
	const query = `
		SELECT id, user_id, name, description, created_at, updated_at
		FROM collections
		WHERE id = $1`
	var c types.Collection
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Collection{}, ErrNotFound
		}
		return types.Collection{}, err
	}
	c.ImageIDs, err = r.imageIDs(ctx, c.ID)
	if err != nil {
		return types.Collection{}, err
	}
	return c, nil
}

func (r *CollectionRepository) imageIDs(ctx context.Context, collectionID uuid.UUID) ([]uuid.UUID, error) {
	const query = `SELECT image_id FROM collection_images WHERE collection_id = $1 ORDER BY position`
	rows, err := r.db.QueryContext(ctx, query, collectionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *CollectionRepository) Create(ctx context.Context, c types.Collection) (types.Collection, error) {
	now := time.Now().UTC()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	c.ImageIDs = []uuid.UUID{}

	const query = `
		INSERT INTO collections (id, user_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query, c.ID, c.UserID, c.Name, c.Description, c.CreatedAt, c.UpdatedAt); err != nil {
		return types.Collection{}, translate(err)
	}
	return c, nil
}

func (r *CollectionRepository) Update(ctx context.Context, c types.Collection) (types.Collection, error) {
	c.UpdatedAt = time.Now().UTC()
	const query = `UPDATE collections SET name = $1, description = $2, updated_at = $3 WHERE id = $4`
	result, err := r.db.ExecContext(ctx, query, c.Name, c.Description, c.UpdatedAt, c.ID)
	if err != nil {
		return types.Collection{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Collection{}, err
	}
	if affected == 0 {
		return types.Collection{}, ErrNotFound
	}
	return c, nil
}

func (r *CollectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM collections WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
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

func (r *CollectionRepository) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	const query = `DELETE FROM collections WHERE user_id = $1`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

// AddImage appends imageID to the collection. Adding a member twice is a conflict.
func (r *CollectionRepository) AddImage(ctx context.Context, collectionID, imageID uuid.UUID) error {
	const query = `
		INSERT INTO collection_images (collection_id, image_id, position, added_at)
		VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM collection_images WHERE collection_id = $1), $3)`
	_, err := r.db.ExecContext(ctx, query, collectionID, imageID, time.Now().UTC())
	return translate(err)
}

func (r *CollectionRepository) RemoveImage(ctx context.Context, collectionID, imageID uuid.UUID) error {
	const query = `DELETE FROM collection_images WHERE collection_id = $1 AND image_id = $2`
	result, err := r.db.ExecContext(ctx, query, collectionID, imageID)
	if err != nil {
		return err
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
