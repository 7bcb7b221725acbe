package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/services/servicetest"
	"github.com/pixelvault/apiserver/types"
)

type imageFixture struct {
	svc         *ImageService
	images      *servicetest.Images
	categories  *servicetest.Categories
	media       *servicetest.Media
	permissions *servicetest.Permissions
	users       *servicetest.Users
	category    types.Category
}

func newImageFixture(timeout time.Duration) imageFixture {
	f := imageFixture{
		images:      servicetest.NewImages(),
		categories:  servicetest.NewCategories(),
		media:       servicetest.NewMedia(),
		permissions: servicetest.NewPermissions(),
		users:       servicetest.NewUsers(),
	}
	f.category = f.categories.Put(types.Category{Name: "Landscape"})
	f.svc = NewImageService(f.images, f.categories, f.media,
		testMediaCleanup(f.media, &servicetest.Publisher{}), NewAuthorizer(f.permissions), timeout, zerolog.Nop())
	return f
}

func sunset() UploadInput {
	return UploadInput{
		Title:    "Sunset",
		Category: "landscape",
		File: Upload{
			Filename:    "sunset.jpg",
			ContentType: "image/jpeg",
			Size:        6,
			Body:        strings.NewReader("pixels"),
		},
	}
}

func TestImageUpload(t *testing.T) {
	f := newImageFixture(time.Second)
	owner := testUser(f.users, "alice")

	image, err := f.svc.Upload(context.Background(), owner, sunset())
	require.NoError(t, err)
	assert.Equal(t, "Sunset", image.Title)
	assert.Equal(t, f.category.ID, image.CategoryID)
	assert.Equal(t, "Landscape", image.CategoryName)
	assert.Equal(t, owner.ID, image.UserID)
	assert.Equal(t, []string{image.PublicID}, f.media.Objects())
}

func TestImageUploadValidation(t *testing.T) {
	f := newImageFixture(time.Second)
	owner := testUser(f.users, "alice")

	in := sunset()
	in.Title = " "
	_, err := f.svc.Upload(context.Background(), owner, in)
	assert.Equal(t, "imageTitle", requireKind(t, err, apperr.KindValidation).Field)

	in = sunset()
	in.Title = strings.Repeat("x", 101)
	_, err = f.svc.Upload(context.Background(), owner, in)
	assert.Equal(t, "imageTitle", requireKind(t, err, apperr.KindValidation).Field)

	in = sunset()
	in.Category = "portraits"
	_, err = f.svc.Upload(context.Background(), owner, in)
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, "category not found", appErr.Message)
	assert.Empty(t, f.media.Objects())
}

func TestImageTitleLimitCountsCharacters(t *testing.T) {
	f := newImageFixture(time.Second)
	owner := testUser(f.users, "alice")

	in := sunset()
	in.Title = strings.Repeat("夕", 100)
	image, err := f.svc.Upload(context.Background(), owner, in)
	require.NoError(t, err)

	title := strings.Repeat("é", 100)
	updated, err := f.svc.Update(context.Background(), owner, image.ID, ImageUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)

	title += "é"
	_, err = f.svc.Update(context.Background(), owner, image.ID, ImageUpdate{Title: &title})
	requireKind(t, err, apperr.KindValidation)
}

func TestImageUploadRollsBackOnDatabaseFailure(t *testing.T) {
	f := newImageFixture(time.Second)
	f.images.CreateErr = servicetest.ErrUnavailable
	owner := testUser(f.users, "alice")

	_, err := f.svc.Upload(context.Background(), owner, sunset())
	require.ErrorIs(t, err, servicetest.ErrUnavailable)
	assert.Empty(t, f.media.Objects())
	assert.Len(t, f.media.Destroyed(), 1)
}

func TestImageUploadProviderFailureCleansUp(t *testing.T) {
	f := newImageFixture(time.Second)
	f.media.UploadErr = servicetest.ErrUnavailable
	owner := testUser(f.users, "alice")

	_, err := f.svc.Upload(context.Background(), owner, sunset())
	requireKind(t, err, apperr.KindExternal)
	assert.Empty(t, f.media.Objects())
	assert.Zero(t, f.images.Len())
}

func TestImageUploadTimeout(t *testing.T) {
	f := newImageFixture(20 * time.Millisecond)
	f.media.BlockUploads = true
	owner := testUser(f.users, "alice")

	_, err := f.svc.Upload(context.Background(), owner, sunset())
	appErr := requireKind(t, err, apperr.KindExternal)
	assert.Equal(t, "image upload timed out", appErr.Message)
	assert.Empty(t, f.media.Objects())
}

func TestImageOwnershipRules(t *testing.T) {
	f := newImageFixture(time.Second)
	ctx := context.Background()
	owner := testUser(f.users, "alice")
	stranger := testUser(f.users, "mallory")
	moderator := testUser(f.users, "mod")
	f.permissions.Put(types.PermissionGrant{
		UserID:      moderator.ID,
		Role:        types.RoleModerator,
		Permissions: types.Permissions{ManageImages: true},
	})

	image, err := f.svc.Upload(ctx, owner, sunset())
	require.NoError(t, err)

	title := "Dusk"
	_, err = f.svc.Update(ctx, stranger, image.ID, ImageUpdate{Title: &title})
	requireKind(t, err, apperr.KindForbidden)

	updated, err := f.svc.Update(ctx, moderator, image.ID, ImageUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Dusk", updated.Title)

	err = f.svc.Delete(ctx, moderator, image.ID)
	requireKind(t, err, apperr.KindForbidden)

	require.NoError(t, f.svc.Delete(ctx, owner, image.ID))
	assert.Empty(t, f.media.Objects())

	_, err = f.svc.Get(ctx, image.ID)
	requireKind(t, err, apperr.KindNotFound)
}

func TestImageListClampsLimit(t *testing.T) {
	f := newImageFixture(time.Second)
	owner := testUser(f.users, "alice")
	for i := 0; i < 3; i++ {
		f.images.Put(types.Image{Title: "Tree", Location: "Oslo", UserID: owner.ID, CategoryID: f.category.ID})
	}
	f.images.Put(types.Image{Title: "Car", UserID: owner.ID, CategoryID: uuid.New()})

	images, pagination, err := f.svc.List(context.Background(), types.ImageFilter{Search: "oslo", Limit: 500})
	require.NoError(t, err)
	assert.Len(t, images, 3)
	assert.Equal(t, 100, pagination.Limit)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 3, pagination.Total)
}
