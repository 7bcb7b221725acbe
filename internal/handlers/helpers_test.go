package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/internal/services/servicetest"
	"github.com/pixelvault/apiserver/types"
)

type testAPI struct {
	router      *chi.Mux
	tokens      *services.TokenIssuer
	users       *servicetest.Users
	sessions    *servicetest.Sessions
	permissions *servicetest.Permissions
	categories  *servicetest.Categories
	images      *servicetest.Images
	media       *servicetest.Media
}

func passThrough(next http.Handler) http.Handler { return next }

func newTestAPI(t *testing.T, production bool) *testAPI {
	t.Helper()
	return newLimitedTestAPI(t, production, passThrough)
}

// newLimitedTestAPI guards the credential endpoints with limit.
func newLimitedTestAPI(t *testing.T, production bool, limit func(http.Handler) http.Handler) *testAPI {
	t.Helper()
	api := &testAPI{
		tokens:      services.NewTokenIssuer("test-secret", 15*time.Minute),
		users:       servicetest.NewUsers(),
		sessions:    servicetest.NewSessions(),
		permissions: servicetest.NewPermissions(),
		categories:  servicetest.NewCategories(),
		images:      servicetest.NewImages(),
		media:       servicetest.NewMedia(),
	}
	logger := zerolog.Nop()
	collections := servicetest.NewCollections()

	auth := services.NewAuthService(api.users, api.sessions, api.tokens, logger,
		services.WithBcryptCost(10),
		services.WithRefreshTTL(7*24*time.Hour),
	)
	authz := services.NewAuthorizer(api.permissions)
	cleanup := services.NewMediaCleanup(api.media, nil, logger)
	userService := services.NewUserService(api.users, api.media, cleanup, time.Second, logger)
	imageService := services.NewImageService(api.images, api.categories, api.media, cleanup, authz, time.Second, logger)
	categoryService := services.NewCategoryService(api.categories, api.images)
	collectionService := services.NewCollectionService(collections, api.images)
	roleService := services.NewRoleService(api.users, api.permissions, logger)
	adminService := services.NewAdminService(services.AdminDeps{
		Users:       api.users,
		Images:      api.images,
		Sessions:    api.sessions,
		Permissions: api.permissions,
		Collections: collections,
		Stats:       &servicetest.Stats{Value: types.DashboardStats{Users: 2, Images: 1}},
	}, cleanup, authz, logger)

	resp := Responder{Production: production}
	guard := NewGuard(auth, authz, resp)
	cookie := RefreshCookie{Production: production, TTL: auth.RefreshTTL()}

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, NewAuthHandler(auth, cookie, resp), limit)
		OAuthRouter(r, nil)
	})
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, NewUserHandler(userService, auth, 1<<20, resp), guard)
	})
	router.Route("/images", func(r chi.Router) {
		ImageRouter(r, NewImageHandler(imageService, 1<<20, resp), guard)
	})
	router.Route("/categories", func(r chi.Router) {
		CategoryRouter(r, NewCategoryHandler(categoryService, resp), guard)
	})
	router.Route("/collections", func(r chi.Router) {
		CollectionRouter(r, NewCollectionHandler(collectionService, resp), guard)
	})
	router.Route("/admin", func(r chi.Router) {
		AdminRouter(r, NewAdminHandler(adminService, resp), NewRoleHandler(roleService, resp), guard)
	})
	api.router = router
	return api
}

type request struct {
	method  string
	path    string
	body    any
	token   string
	cookies []*http.Cookie
}

func (api *testAPI) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader = http.NoBody
	if req.body != nil {
		data, err := json.Marshal(req.body)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, r)
	return rec
}

// tokenFor mints an access token without going through sign-in.
func (api *testAPI) tokenFor(t *testing.T, user types.User) string {
	t.Helper()
	token, err := api.tokens.Issue(user.ID)
	require.NoError(t, err)
	return token
}

func (api *testAPI) putUser(username string, adjust func(*types.User)) types.User {
	user := types.User{Username: username, Email: username + "@example.com", DisplayName: username}
	if adjust != nil {
		adjust(&user)
	}
	return api.users.Put(user)
}

func (api *testAPI) grant(user types.User, role types.Role) {
	api.permissions.Put(types.PermissionGrant{
		UserID:      user.ID,
		Role:        role,
		Permissions: types.DefaultPermissions(role),
	})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func newID() string { return uuid.NewString() }
