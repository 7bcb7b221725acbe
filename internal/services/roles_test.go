package services

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/services/servicetest"
	"github.com/pixelvault/apiserver/types"
)

func TestRoleLifecycle(t *testing.T) {
	ctx := context.Background()
	users := servicetest.NewUsers()
	permissions := servicetest.NewPermissions()
	roles := NewRoleService(users, permissions, zerolog.Nop())

	root := users.Put(types.User{Username: "root", IsAdmin: true, IsSuperAdmin: true})
	carol := testUser(users, "carol")

	grant, err := roles.Create(ctx, root, carol.ID, GrantInput{Role: types.RoleModerator})
	require.NoError(t, err)
	assert.Equal(t, types.DefaultPermissions(types.RoleModerator), grant.Permissions)
	require.NotNil(t, grant.GrantedBy)
	assert.Equal(t, root.ID, *grant.GrantedBy)

	updatedCarol, err := users.GetByID(ctx, carol.ID)
	require.NoError(t, err)
	assert.True(t, updatedCarol.IsAdmin)

	_, err = roles.Create(ctx, root, carol.ID, GrantInput{Role: types.RoleAdmin})
	requireKind(t, err, apperr.KindConflict)

	custom := types.Permissions{ManageCategories: true}
	grant, err = roles.Update(ctx, root, carol.ID, GrantInput{Role: types.RoleAdmin, Permissions: &custom})
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, grant.Role)
	assert.Equal(t, custom, grant.Permissions)

	entries, err := roles.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "carol", entries[0].User.Username)

	require.NoError(t, roles.Revoke(ctx, root, carol.ID))
	updatedCarol, err = users.GetByID(ctx, carol.ID)
	require.NoError(t, err)
	assert.False(t, updatedCarol.IsAdmin)

	err = roles.Revoke(ctx, root, carol.ID)
	requireKind(t, err, apperr.KindNotFound)
}

func TestRolesRefuseSelfOperations(t *testing.T) {
	ctx := context.Background()
	users := servicetest.NewUsers()
	permissions := servicetest.NewPermissions()
	roles := NewRoleService(users, permissions, zerolog.Nop())

	root := users.Put(types.User{Username: "root", IsAdmin: true})
	permissions.Put(types.PermissionGrant{UserID: root.ID, Role: types.RoleSuperAdmin})

	_, err := roles.Create(ctx, root, root.ID, GrantInput{Role: types.RoleAdmin})
	requireKind(t, err, apperr.KindForbidden)

	_, err = roles.Update(ctx, root, root.ID, GrantInput{Role: types.RoleModerator})
	requireKind(t, err, apperr.KindForbidden)

	err = roles.Revoke(ctx, root, root.ID)
	requireKind(t, err, apperr.KindForbidden)

	grant, err := permissions.Get(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, types.RoleSuperAdmin, grant.Role)
}

func TestRoleCreateValidation(t *testing.T) {
	ctx := context.Background()
	users := servicetest.NewUsers()
	roles := NewRoleService(users, servicetest.NewPermissions(), zerolog.Nop())
	root := users.Put(types.User{Username: "root", IsSuperAdmin: true})
	dave := testUser(users, "dave")

	_, err := roles.Create(ctx, root, dave.ID, GrantInput{Role: "owner"})
	appErr := requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, "role", appErr.Field)

	_, err = roles.Create(ctx, root, root.ID, GrantInput{Role: types.RoleAdmin})
	requireKind(t, err, apperr.KindForbidden)

	other := types.User{Username: "ghost"}
	_, err = roles.Create(ctx, root, servicetest.NewUsers().Put(other).ID, GrantInput{Role: types.RoleAdmin})
	requireKind(t, err, apperr.KindNotFound)
}

func TestRevokeKeepsLegacySuperAdminFlag(t *testing.T) {
	ctx := context.Background()
	users := servicetest.NewUsers()
	permissions := servicetest.NewPermissions()
	roles := NewRoleService(users, permissions, zerolog.Nop())

	root := users.Put(types.User{Username: "root", IsSuperAdmin: true, IsAdmin: true})
	legacy := users.Put(types.User{Username: "legacy", IsSuperAdmin: true, IsAdmin: true})
	permissions.Put(types.PermissionGrant{UserID: legacy.ID, Role: types.RoleAdmin})

	require.NoError(t, roles.Revoke(ctx, root, legacy.ID))
	got, err := users.GetByID(ctx, legacy.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)
}
