package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/services/servicetest"
	"github.com/pixelvault/apiserver/types"
)

func TestCollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	images := servicetest.NewImages()
	svc := NewCollectionService(servicetest.NewCollections(), images)
	owner := uuid.New()
	image := images.Put(types.Image{Title: "Bee"})

	_, err := svc.Create(ctx, owner, CollectionInput{Name: "   "})
	requireKind(t, err, apperr.KindValidation)

	created, err := svc.Create(ctx, owner, CollectionInput{Name: " Favourites ", Description: " best "})
	require.NoError(t, err)
	assert.Equal(t, "Favourites", created.Name)
	assert.Equal(t, "best", created.Description)

	withImage, err := svc.AddImage(ctx, owner, created.ID, image.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{image.ID}, withImage.ImageIDs)

	_, err = svc.AddImage(ctx, owner, created.ID, image.ID)
	requireKind(t, err, apperr.KindConflict)

	_, err = svc.AddImage(ctx, owner, created.ID, uuid.New())
	requireKind(t, err, apperr.KindNotFound)

	updated, err := svc.Update(ctx, owner, created.ID, CollectionInput{Name: "Macro"})
	require.NoError(t, err)
	assert.Equal(t, "Macro", updated.Name)

	emptied, err := svc.RemoveImage(ctx, owner, created.ID, image.ID)
	require.NoError(t, err)
	assert.Empty(t, emptied.ImageIDs)

	_, err = svc.RemoveImage(ctx, owner, created.ID, image.ID)
	requireKind(t, err, apperr.KindNotFound)

	require.NoError(t, svc.Delete(ctx, owner, created.ID))
	list, err := svc.List(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCollectionsHiddenFromOtherUsers(t *testing.T) {
	ctx := context.Background()
	images := servicetest.NewImages()
	svc := NewCollectionService(servicetest.NewCollections(), images)
	owner, stranger := uuid.New(), uuid.New()
	image := images.Put(types.Image{Title: "Bee"})

	created, err := svc.Create(ctx, owner, CollectionInput{Name: "Private"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, stranger, created.ID)
	requireKind(t, err, apperr.KindNotFound)
	_, err = svc.Update(ctx, stranger, created.ID, CollectionInput{Name: "Mine"})
	requireKind(t, err, apperr.KindNotFound)
	_, err = svc.AddImage(ctx, stranger, created.ID, image.ID)
	requireKind(t, err, apperr.KindNotFound)
	requireKind(t, svc.Delete(ctx, stranger, created.ID), apperr.KindNotFound)

	got, err := svc.Get(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Private", got.Name)
}
