package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/store"
	"github.com/pixelvault/apiserver/types"
)

// PermissionRepository defines persistence operations for permission grants.
type PermissionRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (types.PermissionGrant, error)
	List(ctx context.Context) ([]types.PermissionGrant, error)
	Create(ctx context.Context, grant types.PermissionGrant) (types.PermissionGrant, error)
	Update(ctx context.Context, grant types.PermissionGrant) (types.PermissionGrant, error)
	Delete(ctx context.Context, userID uuid.UUID) error
}

// Authorizer decides whether an authenticated account may act. Every call
// reads the grant from the store; nothing is cached between requests.
type Authorizer struct {
	permissions PermissionRepository
}

func NewAuthorizer(permissions PermissionRepository) *Authorizer {
	return &Authorizer{permissions: permissions}
}

// RequireAdmin passes accounts flagged as admins.
func (a *Authorizer) RequireAdmin(user types.User) error {
	if !user.IsAdmin {
		return apperr.Forbidden("admin access required")
	}
	return nil
}

// RequirePermission resolves capability for user, in order: the account's
// super-admin flag, the existence of a grant, a super_admin grant role,
// then the capability flag itself. The grant is returned when one was
// consulted; it is nil for flag-based super-admins.
func (a *Authorizer) RequirePermission(ctx context.Context, user types.User, capability types.Capability) (*types.PermissionGrant, error) {
	if user.IsSuperAdmin {
		return nil, nil
	}

	grant, err := a.permissions.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Forbidden("admin access required")
		}
		return nil, err
	}
	if grant.Role == types.RoleSuperAdmin {
		return &grant, nil
	}
	if grant.Permissions.Has(capability) {
		return &grant, nil
	}
	return nil, apperr.Forbidden(fmt.Sprintf("permission denied: %s required", capability))
}

// RequireSuperAdmin passes the super-admin flag or a super_admin grant.
func (a *Authorizer) RequireSuperAdmin(ctx context.Context, user types.User) (*types.PermissionGrant, error) {
	if user.IsSuperAdmin {
		return nil, nil
	}

	grant, err := a.permissions.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Forbidden("super admin access required")
		}
		return nil, err
	}
	if grant.Role != types.RoleSuperAdmin {
		return nil, apperr.Forbidden("super admin access required")
	}
	return &grant, nil
}

// IsSuperAdmin reports RequireSuperAdmin as a boolean.
func (a *Authorizer) IsSuperAdmin(ctx context.Context, user types.User) (bool, error) {
	return allowed(a.RequireSuperAdmin(ctx, user))
}

// Can reports RequirePermission as a boolean. Store failures are still errors.
func (a *Authorizer) Can(ctx context.Context, user types.User, capability types.Capability) (bool, error) {
	return allowed(a.RequirePermission(ctx, user, capability))
}

func allowed(_ *types.PermissionGrant, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if apperr.Is(err, apperr.KindForbidden) {
		return false, nil
	}
	return false, err
}
