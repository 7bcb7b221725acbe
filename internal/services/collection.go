package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/store"
	"github.com/pixelvault/apiserver/types"
)

// CollectionRepository defines persistence operations for collections.
type CollectionRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]types.Collection, error)
	Get(ctx context.Context, id uuid.UUID) (types.Collection, error)
	Create(ctx context.Context, collection types.Collection) (types.Collection, error)
	Update(ctx context.Context, collection types.Collection) (types.Collection, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	AddImage(ctx context.Context, collectionID, imageID uuid.UUID) error
	RemoveImage(ctx context.Context, collectionID, imageID uuid.UUID) error
}

// CollectionService manages private collections. Other users' collections
// are reported as not found.
type CollectionService struct {
	collections CollectionRepository
	images      ImageRepository
}

func NewCollectionService(collections CollectionRepository, images ImageRepository) *CollectionService {
	return &CollectionService{collections: collections, images: images}
}

type CollectionInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *CollectionService) List(ctx context.Context, owner uuid.UUID) ([]types.Collection, error) {
	return s.collections.ListByUser(ctx, owner)
}

func (s *CollectionService) Get(ctx context.Context, owner, id uuid.UUID) (types.Collection, error) {
	collection, err := s.collections.Get(ctx, id)
	if err != nil {
		return types.Collection{}, mapStoreError(err, "collection not found")
	}
	if collection.UserID != owner {
		return types.Collection{}, apperr.NotFound("collection not found")
	}
	return collection, nil
}

func (s *CollectionService) Create(ctx context.Context, owner uuid.UUID, in CollectionInput) (types.Collection, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return types.Collection{}, apperr.Validation("name", "collection name is required")
	}
	return s.collections.Create(ctx, types.Collection{
		UserID:      owner,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
	})
}

func (s *CollectionService) Update(ctx context.Context, owner, id uuid.UUID, in CollectionInput) (types.Collection, error) {
	collection, err := s.Get(ctx, owner, id)
	if err != nil {
		return types.Collection{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return types.Collection{}, apperr.Validation("name", "collection name is required")
	}
	collection.Name = name
	collection.Description = strings.TrimSpace(in.Description)

	updated, err := s.collections.Update(ctx, collection)
	if err != nil {
		return types.Collection{}, mapStoreError(err, "collection not found")
	}
	return updated, nil
}

func (s *CollectionService) Delete(ctx context.Context, owner, id uuid.UUID) error {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return err
	}
	return mapStoreError(s.collections.Delete(ctx, id), "collection not found")
}

func (s *CollectionService) AddImage(ctx context.Context, owner, id, imageID uuid.UUID) (types.Collection, error) {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return types.Collection{}, err
	}
	if _, err := s.images.Get(ctx, imageID); err != nil {
		return types.Collection{}, mapStoreError(err, "image not found")
	}
	if err := s.collections.AddImage(ctx, id, imageID); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return types.Collection{}, apperr.Conflict("imageId", "image is already in the collection")
		case errors.Is(err, store.ErrReferenced):
			return types.Collection{}, apperr.NotFound("image not found")
		}
		return types.Collection{}, err
	}
	return s.Get(ctx, owner, id)
}

func (s *CollectionService) RemoveImage(ctx context.Context, owner, id, imageID uuid.UUID) (types.Collection, error) {
	if _, err := s.Get(ctx, owner, id); err != nil {
		return types.Collection{}, err
	}
	if err := s.collections.RemoveImage(ctx, id, imageID); err != nil {
		return types.Collection{}, mapStoreError(err, "image is not in the collection")
	}
	return s.Get(ctx, owner, id)
}
