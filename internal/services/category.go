package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/store"
	"github.com/pixelvault/apiserver/types"
)

const maxCategoryNameLength = 50

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]types.Category, error)
	Get(ctx context.Context, id uuid.UUID) (types.Category, error)
	GetByName(ctx context.Context, name string) (types.Category, error)
	Create(ctx context.Context, category types.Category) (types.Category, error)
	Update(ctx context.Context, category types.Category) (types.Category, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type CategoryService struct {
	categories CategoryRepository
	images     ImageRepository
}

func NewCategoryService(categories CategoryRepository, images ImageRepository) *CategoryService {
	return &CategoryService{categories: categories, images: images}
}

// CategoryInput is the body of category create and update requests.
type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in CategoryInput) validate() (CategoryInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return in, apperr.Validation("name", "category name is required")
	}
	if utf8.RuneCountInString(in.Name) > maxCategoryNameLength {
		return in, apperr.Validation("name", "category name must be at most 50 characters")
	}
	return in, nil
}

func (s *CategoryService) List(ctx context.Context) ([]types.Category, error) {
	return s.categories.List(ctx)
}

func (s *CategoryService) Get(ctx context.Context, id uuid.UUID) (types.Category, error) {
	category, err := s.categories.Get(ctx, id)
	if err != nil {
		return types.Category{}, mapStoreError(err, "category not found")
	}
	return category, nil
}

func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (types.Category, error) {
	in, err := in.validate()
	if err != nil {
		return types.Category{}, err
	}
	category, err := s.categories.Create(ctx, types.Category{Name: in.Name, Description: in.Description})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Category{}, apperr.Conflict("name", "category already exists")
		}
		return types.Category{}, err
	}
	return category, nil
}

func (s *CategoryService) Update(ctx context.Context, id uuid.UUID, in CategoryInput) (types.Category, error) {
	in, err := in.validate()
	if err != nil {
		return types.Category{}, err
	}
	category, err := s.Get(ctx, id)
	if err != nil {
		return types.Category{}, err
	}
	category.Name = in.Name
	category.Description = in.Description

	updated, err := s.categories.Update(ctx, category)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Category{}, apperr.Conflict("name", "category already exists")
		}
		return types.Category{}, mapStoreError(err, "category not found")
	}
	return updated, nil
}

// Delete removes a category no image references.
func (s *CategoryService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	count, err := s.images.CountByCategory(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return apperr.Conflict("category", fmt.Sprintf("category is used by %d images", count))
	}

	if err := s.categories.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrReferenced) {
			return apperr.Conflict("category", "category is in use")
		}
		return mapStoreError(err, "category not found")
	}
	return nil
}
