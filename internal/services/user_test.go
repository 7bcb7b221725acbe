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

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	id := uuid.New()

	token, err := issuer.Issue(id)
	require.NoError(t, err)
	got, err := issuer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, time.Minute, issuer.TTL())
}

func TestRefreshSecretsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		secret, err := newRefreshSecret()
		require.NoError(t, err)
		assert.Len(t, secret, 64)
		assert.False(t, seen[secret])
		seen[secret] = true
	}
}

func newUserFixture() (*UserService, *servicetest.Users, *servicetest.Media) {
	return newUserFixtureWithTimeout(time.Second)
}

func newUserFixtureWithTimeout(uploadTimeout time.Duration) (*UserService, *servicetest.Users, *servicetest.Media) {
	users := servicetest.NewUsers()
	media := servicetest.NewMedia()
	svc := NewUserService(users, media, testMediaCleanup(media, &servicetest.Publisher{}), uploadTimeout, zerolog.Nop())
	return svc, users, media
}

func TestUpdateProfile(t *testing.T) {
	svc, users, _ := newUserFixture()
	ctx := context.Background()
	local := testUser(users, "alice")
	external := users.Put(types.User{Username: "gina", Email: "gina@gmail.com", IsExternallyAuthenticated: true})

	name := "Alice L."
	bio := "shoots film"
	email := "ALICE@new.example.com"
	updated, err := svc.UpdateProfile(ctx, local.ID, ProfileUpdate{DisplayName: &name, Bio: &bio, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Alice L.", updated.DisplayName)
	assert.Equal(t, "shoots film", updated.Bio)
	assert.Equal(t, "alice@new.example.com", updated.Email)

	long := strings.Repeat("é", 501)
	_, err = svc.UpdateProfile(ctx, local.ID, ProfileUpdate{Bio: &long})
	assert.Equal(t, "bio", requireKind(t, err, apperr.KindValidation).Field)

	other := "gina@example.com"
	_, err = svc.UpdateProfile(ctx, external.ID, ProfileUpdate{Email: &other})
	requireKind(t, err, apperr.KindForbidden)

	same := "gina@gmail.com"
	_, err = svc.UpdateProfile(ctx, external.ID, ProfileUpdate{Email: &same, Bio: &bio})
	require.NoError(t, err)
}

func TestUpdateAvatarReplacesPrevious(t *testing.T) {
	svc, users, media := newUserFixture()
	ctx := context.Background()
	user := testUser(users, "alice")

	upload := func() Upload {
		return Upload{Filename: "me.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")}
	}

	first, err := svc.UpdateAvatar(ctx, user.ID, upload())
	require.NoError(t, err)
	second, err := svc.UpdateAvatar(ctx, user.ID, upload())
	require.NoError(t, err)

	assert.NotEqual(t, first.AvatarURL, second.AvatarURL)
	assert.Equal(t, []string{second.AvatarPublicID}, media.Objects())

	external := users.Put(types.User{Username: "gina", IsExternallyAuthenticated: true})
	_, err = svc.UpdateAvatar(ctx, external.ID, upload())
	requireKind(t, err, apperr.KindForbidden)
}

func TestUpdateAvatarUploadTimeout(t *testing.T) {
	svc, users, media := newUserFixtureWithTimeout(20 * time.Millisecond)
	media.BlockUploads = true
	user := testUser(users, "alice")

	_, err := svc.UpdateAvatar(context.Background(), user.ID,
		Upload{Filename: "me.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png")})
	appErr := requireKind(t, err, apperr.KindExternal)
	assert.Equal(t, "avatar upload timed out", appErr.Message)
	assert.Empty(t, media.Objects())

	stored, err := users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.AvatarPublicID)
}

func TestPublicProfile(t *testing.T) {
	svc, users, _ := newUserFixture()
	users.Put(types.User{Username: "alice", Email: "alice@example.com", Bio: "hi"})

	profile, err := svc.PublicProfile(context.Background(), "Alice")
	require.NoError(t, err)
	assert.Equal(t, "hi", profile.Bio)

	_, err = svc.PublicProfile(context.Background(), "nobody")
	requireKind(t, err, apperr.KindNotFound)
}
