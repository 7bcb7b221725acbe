package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/store"
	"github.com/pixelvault/apiserver/types"
)

// RoleService manages permission grants. Callers are super-admins; an
// account can never create, change or revoke its own grant.
type RoleService struct {
	users       UserRepository
	permissions PermissionRepository
	logger      zerolog.Logger
}

func NewRoleService(users UserRepository, permissions PermissionRepository, logger zerolog.Logger) *RoleService {
	return &RoleService{
		users:       users,
		permissions: permissions,
		logger:      logger.With().Str("component", "roles").Logger(),
	}
}

// GrantInput sets a role and, optionally, explicit flags. Without flags the
// role's defaults apply.
type GrantInput struct {
	Role        types.Role         `json:"role"`
	Permissions *types.Permissions `json:"permissions"`
}

func (in GrantInput) resolve() (types.Role, types.Permissions, error) {
	if !in.Role.Valid() {
		return "", types.Permissions{}, apperr.Validation("role", "role must be one of: super_admin, admin, moderator")
	}
	if in.Permissions != nil {
		return in.Role, *in.Permissions, nil
	}
	return in.Role, types.DefaultPermissions(in.Role), nil
}

func (s *RoleService) List(ctx context.Context) ([]types.AdminEntry, error) {
	grants, err := s.permissions.List(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]types.AdminEntry, 0, len(grants))
	for _, grant := range grants {
		user, err := s.users.GetByID(ctx, grant.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		entries = append(entries, types.AdminEntry{User: user.Summary(), Grant: grant})
	}
	return entries, nil
}

func (s *RoleService) Get(ctx context.Context, userID uuid.UUID) (types.AdminEntry, error) {
	grant, err := s.permissions.Get(ctx, userID)
	if err != nil {
		return types.AdminEntry{}, mapStoreError(err, "permission grant not found")
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.AdminEntry{}, mapStoreError(err, "user not found")
	}
	return types.AdminEntry{User: user.Summary(), Grant: grant}, nil
}

// Create grants target a role and marks it as an admin.
func (s *RoleService) Create(ctx context.Context, actor types.User, target uuid.UUID, in GrantInput) (types.PermissionGrant, error) {
	if actor.ID == target {
		return types.PermissionGrant{}, apperr.Forbidden("cannot grant permissions to yourself")
	}
	role, perms, err := in.resolve()
	if err != nil {
		return types.PermissionGrant{}, err
	}
	if _, err := s.users.GetByID(ctx, target); err != nil {
		return types.PermissionGrant{}, mapStoreError(err, "user not found")
	}

	grantor := actor.ID
	grant, err := s.permissions.Create(ctx, types.PermissionGrant{
		UserID:      target,
		Role:        role,
		Permissions: perms,
		GrantedBy:   &grantor,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.PermissionGrant{}, apperr.Conflict("userId", "user already has a permission grant")
		}
		return types.PermissionGrant{}, mapStoreError(err, "user not found")
	}
	if err := s.users.SetAdminFlag(ctx, target, true); err != nil {
		return types.PermissionGrant{}, mapStoreError(err, "user not found")
	}

	s.logger.Info().
		Str("actor_id", actor.ID.String()).
		Str("target_id", target.String()).
		Str("role", string(role)).
		Msg("permission grant created")
	return grant, nil
}

// Update replaces target's role and flags. Concurrent edits are last-write-wins.
func (s *RoleService) Update(ctx context.Context, actor types.User, target uuid.UUID, in GrantInput) (types.PermissionGrant, error) {
	if actor.ID == target {
		return types.PermissionGrant{}, apperr.Forbidden("cannot change your own permissions")
	}
	role, perms, err := in.resolve()
	if err != nil {
		return types.PermissionGrant{}, err
	}

	grant, err := s.permissions.Get(ctx, target)
	if err != nil {
		return types.PermissionGrant{}, mapStoreError(err, "permission grant not found")
	}
	grant.Role = role
	grant.Permissions = perms

	updated, err := s.permissions.Update(ctx, grant)
	if err != nil {
		return types.PermissionGrant{}, mapStoreError(err, "permission grant not found")
	}

	s.logger.Info().
		Str("actor_id", actor.ID.String()).
		Str("target_id", target.String()).
		Str("role", string(role)).
		Msg("permission grant updated")
	return updated, nil
}

// Revoke deletes target's grant and clears its admin flag, unless the
// account is a flag-based super-admin.
func (s *RoleService) Revoke(ctx context.Context, actor types.User, target uuid.UUID) error {
	if actor.ID == target {
		return apperr.Forbidden("cannot revoke your own permissions")
	}
	if err := s.permissions.Delete(ctx, target); err != nil {
		return mapStoreError(err, "permission grant not found")
	}

	user, err := s.users.GetByID(ctx, target)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	}
	if !user.IsSuperAdmin {
		if err := s.users.SetAdminFlag(ctx, target, false); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}

	s.logger.Info().
		Str("actor_id", actor.ID.String()).
		Str("target_id", target.String()).
		Msg("permission grant revoked")
	return nil
}
