package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pixelvault/apiserver/types"
)

// ImageRepository handles persistence for images.
type ImageRepository struct {
	db *sql.DB
}

func NewImageRepository(db *sql.DB) *ImageRepository {
	return &ImageRepository{db: db}
}

const imageSelect = `
		SELECT i.id, i.title, i.url, i.public_id, i.category_id, c.name, i.location, i.camera_model,
			i.user_id, u.username, i.created_at, i.updated_at
		FROM images i
		JOIN categories c ON c.id = i.category_id
		JOIN users u ON u.id = i.user_id`

func scanImage(row rowScanner) (types.Image, error) {
	var image types.Image
	err := row.Scan(
		&image.ID,
		&image.Title,
		&image.URL,
		&image.PublicID,
		&image.CategoryID,
		&image.CategoryName,
		&image.Location,
		&image.CameraModel,
		&image.UserID,
		&image.Username,
		&image.CreatedAt,
		&image.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Image{}, ErrNotFound
		}
		return types.Image{}, err
	}
	return image, nil
}

// imageWhere translates an ImageFilter into a SQL predicate.
func imageWhere(filter types.ImageFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+escapeLike(search)+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf("(i.title ILIKE $%d OR i.location ILIKE $%d OR i.camera_model ILIKE $%d)", n, n, n))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("i.category_id = $%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("i.user_id = $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *ImageRepository) List(ctx context.Context, filter types.ImageFilter) ([]types.Image, int, error) {
	where, args := imageWhere(filter)

	countQuery := `SELECT COUNT(1) FROM images i` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(filter.Page, filter.Limit)
	listQuery := fmt.Sprintf("%s%s ORDER BY i.created_at DESC LIMIT $%d OFFSET $%d",
		imageSelect, where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	images := make([]types.Image, 0, limit)
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, 0, err
		}
		images = append(images, image)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return images, total, nil
}

func (r *ImageRepository) Get(ctx context.Context, id uuid.UUID) (types.Image, error) {
	return scanImage(r.db.QueryRowContext(ctx, imageSelect+` WHERE i.id = $1`, id))
}

// ListByUser returns every image uploaded by userID, unpaged. Used by cascade deletes.
func (r *ImageRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]types.Image, error) {
	rows, err := r.db.QueryContext(ctx, imageSelect+` WHERE i.user_id = $1 ORDER BY i.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var images []types.Image
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func (r *ImageRepository) Create(ctx context.Context, image types.Image) (types.Image, error) {
	now := time.Now().UTC()
	if image.ID == uuid.Nil {
		image.ID = uuid.New()
	}
	image.CreatedAt = now
	image.UpdatedAt = now

	const query = `
		INSERT INTO images (id, title, url, public_id, category_id, location, camera_model, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		image.ID,
		image.Title,
		image.URL,
		image.PublicID,
		image.CategoryID,
		image.Location,
		image.CameraModel,
		image.UserID,
		image.CreatedAt,
		image.UpdatedAt,
	); err != nil {
		return types.Image{}, translate(err)
	}
	return image, nil
}

func (r *ImageRepository) Update(ctx context.Context, image types.Image) (types.Image, error) {
	image.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE images
		SET title = $1,
			category_id = $2,
			location = $3,
			camera_model = $4,
			updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		image.Title,
		image.CategoryID,
		image.Location,
		image.CameraModel,
		image.UpdatedAt,
		image.ID,
	)
	if err != nil {
		return types.Image{}, translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Image{}, err
	}
	if affected == 0 {
		return types.Image{}, ErrNotFound
	}
	return image, nil
}

func (r *ImageRepository) Delete(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM images WHERE id = $1`
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

func (r *ImageRepository) CountByCategory(ctx context.Context, categoryID uuid.UUID) (int, error) {
	const query = `SELECT COUNT(1) FROM images WHERE category_id = $1`
	var count int
	err := r.db.QueryRowContext(ctx, query, categoryID).Scan(&count)
	return count, err
}
