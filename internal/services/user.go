package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/store"
	"github.com/pixelvault/apiserver/internal/validation"
	"github.com/pixelvault/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (types.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	SetAdminFlag(ctx context.Context, id uuid.UUID, isAdmin bool) error
	PromoteSuperAdmin(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter types.UserFilter) ([]types.User, int, error)
}

// UserService covers the signed-in user's own profile.
type UserService struct {
	repo      UserRepository
	media     MediaStore
	cleanup   *MediaCleanup
	validator *validation.Validator
	logger    zerolog.Logger

	uploadTimeout time.Duration
}

func NewUserService(repo UserRepository, media MediaStore, cleanup *MediaCleanup, uploadTimeout time.Duration, logger zerolog.Logger) *UserService {
	if uploadTimeout <= 0 {
		uploadTimeout = defaultUploadTimeout
	}
	return &UserService{
		repo:          repo,
		media:         media,
		cleanup:       cleanup,
		validator:     validation.New(),
		logger:        logger.With().Str("component", "users").Logger(),
		uploadTimeout: uploadTimeout,
	}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.NotFound("user not found")
		}
		return types.User{}, err
	}
	return user, nil
}

func (s *UserService) PublicProfile(ctx context.Context, username string) (types.PublicProfile, error) {
	user, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.PublicProfile{}, apperr.NotFound("user not found")
		}
		return types.PublicProfile{}, err
	}
	return user.PublicProfile(), nil
}

// ProfileUpdate holds the editable profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	Email       *string `json:"email"`
}

// UpdateProfile edits the caller's own profile. Externally authenticated
// accounts cannot change their email here.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileUpdate) (types.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}

	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if name == "" {
			return types.User{}, apperr.Validation("displayName", "display name cannot be empty")
		}
		user.DisplayName = name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > validation.MaxBioLength {
			return types.User{}, apperr.Validation("bio", "bio must be at most 500 characters")
		}
		user.Bio = bio
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email != user.Email {
			if user.IsExternallyAuthenticated {
				return types.User{}, apperr.Forbidden("email is managed by your sign-in provider")
			}
			if !s.validator.ValidEmail(email) {
				return types.User{}, apperr.Validation("email", "email must be a valid email address")
			}
			user.Email = email
		}
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return types.User{}, mapStoreError(err, "user not found")
	}
	return updated, nil
}

// UpdateAvatar replaces the caller's avatar. The provider upload runs under
// its own timeout; the previous object is destroyed best-effort after the
// new one is saved.
func (s *UserService) UpdateAvatar(ctx context.Context, userID uuid.UUID, file Upload) (types.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return types.User{}, err
	}
	if user.IsExternallyAuthenticated {
		return types.User{}, apperr.Forbidden("avatar is managed by your sign-in provider")
	}
	if file.Body == nil {
		return types.User{}, apperr.Validation("avatar", "avatar file is required")
	}

	uploadCtx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	asset, err := s.media.Upload(uploadCtx, file.Filename, file.Body, file.Size, file.ContentType)
	cancel()
	if err != nil {
		s.cleanup.Destroy(context.WithoutCancel(ctx), asset.PublicID, "avatar upload failed")
		if errors.Is(err, context.DeadlineExceeded) {
			return types.User{}, apperr.External("avatar upload timed out", err)
		}
		return types.User{}, apperr.External("avatar upload failed", err)
	}

	previous := user.AvatarPublicID
	user.AvatarURL = asset.URL
	user.AvatarPublicID = asset.PublicID
	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		s.cleanup.Destroy(context.WithoutCancel(ctx), asset.PublicID, "avatar save failed")
		return types.User{}, mapStoreError(err, "user not found")
	}
	if previous != "" {
		s.cleanup.Destroy(ctx, previous, "avatar replaced")
	}
	return updated, nil
}

// Upload is a file received from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// mapStoreError converts repository sentinels into tagged errors.
func mapStoreError(err error, notFound string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, store.ErrConflict):
		field := store.ConflictField(err)
		if field == "" {
			return apperr.Conflict("", "resource already exists")
		}
		return apperr.Conflict(field, field+" already exists")
	}
	return err
}
