package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/store"
	"github.com/pixelvault/apiserver/types"
)

const (
	defaultUploadTimeout = 90 * time.Second
	defaultPageLimit     = 20
	maxPageLimit         = 100
	maxTitleLength       = 100
)

// ImageRepository defines persistence operations for images.
type ImageRepository interface {
	List(ctx context.Context, filter types.ImageFilter) ([]types.Image, int, error)
	Get(ctx context.Context, id uuid.UUID) (types.Image, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]types.Image, error)
	Create(ctx context.Context, image types.Image) (types.Image, error)
	Update(ctx context.Context, image types.Image) (types.Image, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountByCategory(ctx context.Context, categoryID uuid.UUID) (int, error)
}

// ImageService manages the gallery.
type ImageService struct {
	images        ImageRepository
	categories    CategoryRepository
	media         MediaStore
	cleanup       *MediaCleanup
	authz         *Authorizer
	uploadTimeout time.Duration
	logger        zerolog.Logger
}

func NewImageService(
	images ImageRepository,
	categories CategoryRepository,
	media MediaStore,
	cleanup *MediaCleanup,
	authz *Authorizer,
	uploadTimeout time.Duration,
	logger zerolog.Logger,
) *ImageService {
	if uploadTimeout <= 0 {
		uploadTimeout = defaultUploadTimeout
	}
	return &ImageService{
		images:        images,
		categories:    categories,
		media:         media,
		cleanup:       cleanup,
		authz:         authz,
		uploadTimeout: uploadTimeout,
		logger:        logger.With().Str("component", "images").Logger(),
	}
}

// NormalizePage clamps page to >= 1 and limit to 1..100.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func (s *ImageService) List(ctx context.Context, filter types.ImageFilter) ([]types.Image, types.Pagination, error) {
	filter.Page, filter.Limit = NormalizePage(filter.Page, filter.Limit)
	images, total, err := s.images.List(ctx, filter)
	if err != nil {
		return nil, types.Pagination{}, err
	}
	return images, types.NewPagination(filter.Page, filter.Limit, total), nil
}

func (s *ImageService) Get(ctx context.Context, id uuid.UUID) (types.Image, error) {
	image, err := s.images.Get(ctx, id)
	if err != nil {
		return types.Image{}, mapStoreError(err, "image not found")
	}
	return image, nil
}

// UploadInput is a new image with its metadata.
type UploadInput struct {
	Title       string
	Category    string
	Location    string
	CameraModel string
	File        Upload
}

// Upload stores the file with the media provider, then records it. A
// provider failure destroys any partial object; a database failure
// destroys the uploaded object.
func (s *ImageService) Upload(ctx context.Context, owner types.User, in UploadInput) (types.Image, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return types.Image{}, apperr.Validation("imageTitle", "image title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return types.Image{}, apperr.Validation("imageTitle", "image title must be at most 100 characters")
	}
	if strings.TrimSpace(in.Category) == "" {
		return types.Image{}, apperr.Validation("imageCategory", "image category is required")
	}
	if in.File.Body == nil {
		return types.Image{}, apperr.Validation("image", "image file is required")
	}
	category, err := s.resolveCategory(ctx, in.Category)
	if err != nil {
		return types.Image{}, err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	asset, err := s.media.Upload(uploadCtx, in.File.Filename, in.File.Body, in.File.Size, in.File.ContentType)
	cancel()
	if err != nil {
		s.cleanup.Destroy(context.WithoutCancel(ctx), asset.PublicID, "upload failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return types.Image{}, apperr.External("image upload timed out", err)
		}
		return types.Image{}, apperr.External("image upload failed", err)
	}

	image, err := s.images.Create(ctx, types.Image{
		Title:        title,
		URL:          asset.URL,
		PublicID:     asset.PublicID,
		CategoryID:   category.ID,
		CategoryName: category.Name,
		Location:     strings.TrimSpace(in.Location),
		CameraModel:  strings.TrimSpace(in.CameraModel),
		UserID:       owner.ID,
		Username:     owner.Username,
	})
	if err != nil {
		s.cleanup.Destroy(context.WithoutCancel(ctx), asset.PublicID, "image save failed")
		return types.Image{}, err
	}
	image.CategoryName = category.Name
	image.Username = owner.Username

	s.logger.Info().Str("image_id", image.ID.String()).Str("user_id", owner.ID.String()).Msg("image uploaded")
	return image, nil
}

// resolveCategory accepts a category id or a case-insensitive name.
func (s *ImageService) resolveCategory(ctx context.Context, ref string) (types.Category, error) {
	ref = strings.TrimSpace(ref)
	var (
		category types.Category
		err      error
	)
	if id, perr := uuid.Parse(ref); perr == nil {
		category, err = s.categories.Get(ctx, id)
	} else {
		category, err = s.categories.GetByName(ctx, ref)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Category{}, apperr.Validation("imageCategory", "category not found")
		}
		return types.Category{}, err
	}
	return category, nil
}

// ImageUpdate holds editable image fields. Nil fields are left unchanged.
type ImageUpdate struct {
	Title       *string `json:"imageTitle"`
	Category    *string `json:"imageCategory"`
	Location    *string `json:"location"`
	CameraModel *string `json:"cameraModel"`
}

// Update edits an image. Owners may always edit; others need manageImages.
func (s *ImageService) Update(ctx context.Context, actor types.User, id uuid.UUID, in ImageUpdate) (types.Image, error) {
	image, err := s.Get(ctx, id)
	if err != nil {
		return types.Image{}, err
	}
	if err := s.authorize(ctx, actor, image, types.CapManageImages); err != nil {
		return types.Image{}, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
			return types.Image{}, apperr.Validation("imageTitle", "image title must be 1-100 characters")
		}
		image.Title = title
	}
	if in.Category != nil {
		category, err := s.resolveCategory(ctx, *in.Category)
		if err != nil {
			return types.Image{}, err
		}
		image.CategoryID = category.ID
		image.CategoryName = category.Name
	}
	if in.Location != nil {
		image.Location = strings.TrimSpace(*in.Location)
	}
	if in.CameraModel != nil {
		image.CameraModel = strings.TrimSpace(*in.CameraModel)
	}

	updated, err := s.images.Update(ctx, image)
	if err != nil {
		return types.Image{}, mapStoreError(err, "image not found")
	}
	return updated, nil
}

// Delete removes an image. Owners may always delete; others need
// deleteImages. A media destroy failure does not block the delete.
func (s *ImageService) Delete(ctx context.Context, actor types.User, id uuid.UUID) error {
	image, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, image, types.CapDeleteImages); err != nil {
		return err
	}

	_ = s.cleanup.Destroy(ctx, image.PublicID, "image deleted")
	if err := s.images.Delete(ctx, image.ID); err != nil {
		return mapStoreError(err, "image not found")
	}

	s.logger.Info().Str("image_id", image.ID.String()).Str("actor_id", actor.ID.String()).Msg("image deleted")
	return nil
}

func (s *ImageService) authorize(ctx context.Context, actor types.User, image types.Image, capability types.Capability) error {
	if image.UserID == actor.ID {
		return nil
	}
	ok, err := s.authz.Can(ctx, actor, capability)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("you can only modify your own images")
	}
	return nil
}
