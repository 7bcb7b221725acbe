package services

import (
	"context"
	"errors"
	"fmt"
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

// StatsRepository computes dashboard aggregates.
type StatsRepository interface {
	Dashboard(ctx context.Context, now time.Time) (types.DashboardStats, error)
}

// AdminService backs the admin console. Route guards check the capability;
// the rules here cover what a capability alone does not decide.
type AdminService struct {
	users       UserRepository
	images      ImageRepository
	sessions    SessionRepository
	permissions PermissionRepository
	collections CollectionRepository
	stats       StatsRepository
	cleanup     *MediaCleanup
	authz       *Authorizer
	now         func() time.Time
	logger      zerolog.Logger
}

// AdminDeps groups the repositories AdminService reads and writes.
type AdminDeps struct {
	Users       UserRepository
	Images      ImageRepository
	Sessions    SessionRepository
	Permissions PermissionRepository
	Collections CollectionRepository
	Stats       StatsRepository
}

func NewAdminService(deps AdminDeps, cleanup *MediaCleanup, authz *Authorizer, logger zerolog.Logger) *AdminService {
	return &AdminService{
		users:       deps.Users,
		images:      deps.Images,
		sessions:    deps.Sessions,
		permissions: deps.Permissions,
		collections: deps.Collections,
		stats:       deps.Stats,
		cleanup:     cleanup,
		authz:       authz,
		now:         time.Now,
		logger:      logger.With().Str("component", "admin").Logger(),
	}
}

func (s *AdminService) Stats(ctx context.Context) (types.DashboardStats, error) {
	return s.stats.Dashboard(ctx, s.now().UTC())
}

func (s *AdminService) ListUsers(ctx context.Context, filter types.UserFilter) ([]types.User, types.Pagination, error) {
	filter.Page, filter.Limit = NormalizePage(filter.Page, filter.Limit)
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, types.Pagination{}, err
	}
	return users, types.NewPagination(filter.Page, filter.Limit, total), nil
}

func (s *AdminService) GetUser(ctx context.Context, id uuid.UUID) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return types.User{}, mapStoreError(err, "user not found")
	}
	return user, nil
}

// AdminUserUpdate holds the fields an admin may edit. Nil fields are left unchanged.
type AdminUserUpdate struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
	IsAdmin     *bool   `json:"isAdmin"`
}

// UpdateUser edits another account. Changing isAdmin needs a super-admin
// and is never allowed on the caller's own account.
func (s *AdminService) UpdateUser(ctx context.Context, actor types.User, id uuid.UUID, in AdminUserUpdate) (types.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if in.IsAdmin != nil && *in.IsAdmin != user.IsAdmin {
		if actor.ID == user.ID {
			return types.User{}, apperr.Forbidden("cannot change your own admin status")
		}
		if _, err := s.authz.RequireSuperAdmin(ctx, actor); err != nil {
			return types.User{}, err
		}
		user.IsAdmin = *in.IsAdmin
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

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return types.User{}, mapStoreError(err, "user not found")
	}
	s.logger.Info().Str("actor_id", actor.ID.String()).Str("target_id", id.String()).Msg("user updated by admin")
	return updated, nil
}

// DeleteUser removes an account and everything it owns. The steps run in
// sequence without a transaction; media destroy failures are collected in
// the outcome and queued for retry instead of aborting the delete.
func (s *AdminService) DeleteUser(ctx context.Context, actor types.User, id uuid.UUID) (types.DeleteOutcome, error) {
	outcome := types.DeleteOutcome{CleanupErrors: []string{}}
	if actor.ID == id {
		return outcome, apperr.Forbidden("cannot delete your own account")
	}
	target, err := s.GetUser(ctx, id)
	if err != nil {
		return outcome, err
	}
	if target.IsSuperAdmin {
		if _, err := s.authz.RequireSuperAdmin(ctx, actor); err != nil {
			return outcome, apperr.Forbidden("only a super admin can delete a super admin")
		}
	}

	log := s.logger.With().Str("actor_id", actor.ID.String()).Str("target_id", id.String()).Logger()

	images, err := s.images.ListByUser(ctx, id)
	if err != nil {
		return outcome, err
	}
	for _, image := range images {
		if err := s.cleanup.Destroy(ctx, image.PublicID, "owner deleted"); err != nil {
			outcome.CleanupErrors = append(outcome.CleanupErrors, fmt.Sprintf("image %s: %v", image.ID, err))
		}
		if err := s.images.Delete(ctx, image.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return outcome, err
		}
		outcome.ImagesDeleted++
	}

	if err := s.cleanup.Destroy(ctx, target.AvatarPublicID, "owner deleted"); err != nil {
		outcome.CleanupErrors = append(outcome.CleanupErrors, fmt.Sprintf("avatar: %v", err))
	}

	revoked, err := s.sessions.DeleteByUser(ctx, id)
	if err != nil {
		return outcome, err
	}
	if err := s.permissions.Delete(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return outcome, err
	}
	if err := s.collections.DeleteByUser(ctx, id); err != nil {
		return outcome, err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return outcome, mapStoreError(err, "user not found")
	}
	outcome.Persisted = true

	event := log.Info()
	if len(outcome.CleanupErrors) > 0 {
		event = log.Warn().Strs("cleanup_errors", outcome.CleanupErrors)
	}
	event.Int("images_deleted", outcome.ImagesDeleted).Int64("sessions_revoked", revoked).Msg("user deleted")
	return outcome, nil
}

// ListImages is the moderation view of the gallery.
func (s *AdminService) ListImages(ctx context.Context, filter types.ImageFilter) ([]types.Image, types.Pagination, error) {
	filter.Page, filter.Limit = NormalizePage(filter.Page, filter.Limit)
	images, total, err := s.images.List(ctx, filter)
	if err != nil {
		return nil, types.Pagination{}, err
	}
	return images, types.NewPagination(filter.Page, filter.Limit, total), nil
}

// DeleteImage removes any image. The route guard checks deleteImages.
func (s *AdminService) DeleteImage(ctx context.Context, actor types.User, id uuid.UUID) error {
	image, err := s.images.Get(ctx, id)
	if err != nil {
		return mapStoreError(err, "image not found")
	}
	_ = s.cleanup.Destroy(ctx, image.PublicID, "removed by admin")
	if err := s.images.Delete(ctx, id); err != nil {
		return mapStoreError(err, "image not found")
	}
	s.logger.Info().Str("actor_id", actor.ID.String()).Str("image_id", id.String()).Msg("image removed by admin")
	return nil
}
