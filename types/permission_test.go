package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPermissions(t *testing.T) {
	assert.Equal(t, AllPermissions(), DefaultPermissions(RoleSuperAdmin))

	admin := DefaultPermissions(RoleAdmin)
	assert.False(t, admin.ManageAdmins)
	for _, c := range Capabilities {
		if c != CapManageAdmins {
			assert.True(t, admin.Has(c), c)
		}
	}

	moderator := DefaultPermissions(RoleModerator)
	assert.Equal(t, Permissions{ManageImages: true, DeleteImages: true, ViewDashboard: true}, moderator)

	assert.Equal(t, Permissions{}, DefaultPermissions(Role("owner")))
}

func TestPermissionsHasUnknownCapability(t *testing.T) {
	assert.False(t, AllPermissions().Has(Capability("launchRockets")))
}

func TestGrantAllows(t *testing.T) {
	super := PermissionGrant{Role: RoleSuperAdmin}
	assert.True(t, super.Allows(CapManageAdmins), "super admin ignores stored flags")

	moderator := PermissionGrant{Role: RoleModerator, Permissions: DefaultPermissions(RoleModerator)}
	assert.True(t, moderator.Allows(CapDeleteImages))
	assert.False(t, moderator.Allows(CapDeleteUsers))
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("Admin").Valid())
}

func TestSessionExpiredAtBoundary(t *testing.T) {
	expires := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.False(t, SessionExpired(expires, expires))
	assert.True(t, SessionExpired(expires, expires.Add(time.Nanosecond)))
	assert.False(t, Session{ExpiresAt: expires}.Expired(expires.Add(-time.Second)))
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, Pagination{Page: 2, Limit: 10, Total: 21, TotalPages: 3}, NewPagination(2, 10, 21))
	assert.Equal(t, 0, NewPagination(1, 0, 5).TotalPages)
}

func TestUserHasPassword(t *testing.T) {
	assert.True(t, User{PasswordHash: "$2a$10$x"}.HasPassword())
	assert.False(t, User{PasswordHash: "$2a$10$x", IsExternallyAuthenticated: true}.HasPassword())
	assert.False(t, User{}.HasPassword())
}
