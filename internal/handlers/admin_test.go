package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/apiserver/types"
)

func TestAdminRoutesNeedAuthentication(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(t, request{method: http.MethodGet, path: "/admin/dashboard/stats"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, request{method: http.MethodGet, path: "/admin/dashboard/stats", token: "garbage"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "invalid access token", decode[ErrorResponse](t, rec).Error)
}

func TestAdminGateAndCapabilities(t *testing.T) {
	api := newTestAPI(t, false)

	plain := api.putUser("plain", nil)
	moderator := api.putUser("mod", func(u *types.User) { u.IsAdmin = true })
	api.grant(moderator, types.RoleModerator)
	flagOnly := api.putUser("flagonly", func(u *types.User) { u.IsAdmin = true })

	cases := []struct {
		name   string
		user   types.User
		path   string
		status int
	}{
		{"non-admin", plain, "/admin/dashboard/stats", http.StatusForbidden},
		{"moderator sees dashboard", moderator, "/admin/dashboard/stats", http.StatusOK},
		{"moderator lists images", moderator, "/admin/images", http.StatusOK},
		{"moderator cannot list users", moderator, "/admin/users", http.StatusForbidden},
		{"admin flag without grant", flagOnly, "/admin/dashboard/stats", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(t, request{method: http.MethodGet, path: tc.path, token: api.tokenFor(t, tc.user)})
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestSuperAdminFlagPassesEveryCheck(t *testing.T) {
	api := newTestAPI(t, false)
	root := api.putUser("root", func(u *types.User) { u.IsAdmin = true; u.IsSuperAdmin = true })
	token := api.tokenFor(t, root)

	rec := api.do(t, request{method: http.MethodGet, path: "/admin/dashboard/stats", token: token})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[StatsResponse](t, rec).Stats.Users)

	rec = api.do(t, request{method: http.MethodGet, path: "/admin/roles", token: token})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRolesRequireSuperAdmin(t *testing.T) {
	api := newTestAPI(t, false)
	admin := api.putUser("admin", func(u *types.User) { u.IsAdmin = true })
	api.grant(admin, types.RoleAdmin)
	target := api.putUser("target", nil)

	rec := api.do(t, request{method: http.MethodPost, path: "/admin/roles", token: api.tokenFor(t, admin),
		body: map[string]any{"userId": target.ID.String(), "role": "moderator"}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRoleLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t, false)
	boss := api.putUser("boss", func(u *types.User) { u.IsAdmin = true })
	api.grant(boss, types.RoleSuperAdmin)
	target := api.putUser("target", nil)
	token := api.tokenFor(t, boss)

	rec := api.do(t, request{method: http.MethodPost, path: "/admin/roles", token: token,
		body: map[string]any{"userId": target.ID.String(), "role": "moderator"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	grant := decode[GrantResponse](t, rec).Grant
	assert.Equal(t, types.RoleModerator, grant.Role)
	assert.True(t, grant.Permissions.ViewDashboard)
	assert.False(t, grant.Permissions.ManageUsers)

	// The new moderator can use the dashboard on the very next request.
	stats := api.do(t, request{method: http.MethodGet, path: "/admin/dashboard/stats", token: api.tokenFor(t, target)})
	assert.Equal(t, http.StatusOK, stats.Code)

	rec = api.do(t, request{method: http.MethodPost, path: "/admin/roles", token: token,
		body: map[string]any{"userId": target.ID.String(), "role": "admin"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, request{method: http.MethodPut, path: "/admin/roles/" + target.ID.String(), token: token,
		body: map[string]any{"role": "admin"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[GrantResponse](t, rec).Grant.Permissions.ManageUsers)

	rec = api.do(t, request{method: http.MethodDelete, path: "/admin/roles/" + target.ID.String(), token: token})
	require.Equal(t, http.StatusOK, rec.Code)

	stats = api.do(t, request{method: http.MethodGet, path: "/admin/dashboard/stats", token: api.tokenFor(t, target)})
	assert.Equal(t, http.StatusForbidden, stats.Code)

	rec = api.do(t, request{method: http.MethodDelete, path: "/admin/roles/" + boss.ID.String(), token: token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, request{method: http.MethodPost, path: "/admin/roles", token: token,
		body: map[string]any{"userId": "nope", "role": "admin"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "userId", decode[ErrorResponse](t, rec).Field)
}

func TestAdminCannotDeleteOwnAccount(t *testing.T) {
	api := newTestAPI(t, false)
	admin := api.putUser("admin", func(u *types.User) { u.IsAdmin = true })
	api.grant(admin, types.RoleAdmin)
	token := api.tokenFor(t, admin)

	rec := api.do(t, request{method: http.MethodDelete, path: "/admin/users/" + admin.ID.String(), token: token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	victim := api.putUser("victim", nil)
	api.images.Put(types.Image{Title: "Bee", UserID: victim.ID, PublicID: "photos/bee.jpg"})

	rec = api.do(t, request{method: http.MethodDelete, path: "/admin/users/" + victim.ID.String(), token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	outcome := decode[DeleteUserResponse](t, rec).Outcome
	assert.True(t, outcome.Persisted)
	assert.Equal(t, 1, outcome.ImagesDeleted)
	assert.Empty(t, outcome.CleanupErrors)

	rec = api.do(t, request{method: http.MethodGet, path: "/admin/users/" + victim.ID.String(), token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, request{method: http.MethodGet, path: "/admin/users/" + newID(), token: token})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminListUsersPagination(t *testing.T) {
	api := newTestAPI(t, false)
	admin := api.putUser("admin", func(u *types.User) { u.IsAdmin = true })
	api.grant(admin, types.RoleAdmin)
	for _, name := range []string{"ann", "ben", "cat"} {
		api.putUser(name, nil)
	}

	rec := api.do(t, request{method: http.MethodGet, path: "/admin/users?page=2&limit=2", token: api.tokenFor(t, admin)})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[UserListResponse](t, rec)
	assert.Len(t, body.Users, 2)
	assert.Equal(t, 2, body.Pagination.Page)
	assert.Equal(t, 4, body.Pagination.Total)
}
