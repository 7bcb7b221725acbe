package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/types"
)

type fakeGoogle struct {
	profile   services.GoogleProfile
	signInErr error
	codes     []string
}

func (f *fakeGoogle) AuthCodeURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (f *fakeGoogle) Exchange(_ context.Context, code string) (services.GoogleProfile, error) {
	f.codes = append(f.codes, code)
	return f.profile, nil
}

func (f *fakeGoogle) SignIn(_ context.Context, profile services.GoogleProfile) (types.User, string, error) {
	if f.signInErr != nil {
		return types.User{}, "", f.signInErr
	}
	return types.User{Username: "jane"}, "refresh-secret", nil
}

func newOAuthRouter(google *fakeGoogle) *chi.Mux {
	handler := NewOAuthHandler(google,
		NewStateStore("0123456789abcdef0123456789abcdef", false),
		RefreshCookie{TTL: time.Hour},
		"http://localhost:5173/",
	)
	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) { OAuthRouter(r, handler) })
	return router
}

// startLogin runs the first leg and returns the state and its cookie.
func startLogin(t *testing.T, router http.Handler) (string, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/google", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)

	cookie := findCookie(rec, oauthSessionName)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	return state, cookie
}

func callback(router http.Handler, query string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+query, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGoogleCallbackSetsRefreshCookie(t *testing.T) {
	google := &fakeGoogle{profile: services.GoogleProfile{ID: "g-1", Email: "jane@gmail.com", VerifiedEmail: true}}
	router := newOAuthRouter(google)
	state, cookie := startLogin(t, router)

	rec := callback(router, "state="+state+"&code=abc", cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://localhost:5173/", rec.Header().Get("Location"))
	assert.Equal(t, []string{"abc"}, google.codes)

	refresh := findCookie(rec, refreshCookieName)
	require.NotNil(t, refresh)
	assert.Equal(t, "refresh-secret", refresh.Value)
	assert.True(t, refresh.HttpOnly)
}

func TestGoogleCallbackRejectsBadState(t *testing.T) {
	google := &fakeGoogle{}
	router := newOAuthRouter(google)
	_, cookie := startLogin(t, router)

	rec := callback(router, "state=forged&code=abc", cookie)
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "invalid oauth state", location.Query().Get("authError"))
	assert.Empty(t, google.codes)
	assert.Nil(t, findCookie(rec, refreshCookieName))

	rec = callback(router, "state=anything&code=abc", nil)
	assert.Nil(t, findCookie(rec, refreshCookieName))
}

func TestGoogleCallbackReportsConflict(t *testing.T) {
	google := &fakeGoogle{signInErr: apperr.Conflict("email", "email is registered with a password account")}
	router := newOAuthRouter(google)
	state, cookie := startLogin(t, router)

	rec := callback(router, "state="+state+"&code=abc", cookie)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "email is registered with a password account", location.Query().Get("authError"))
}

func TestGoogleCallbackHidesInternalErrors(t *testing.T) {
	google := &fakeGoogle{signInErr: errors.New("pq: connection refused")}
	router := newOAuthRouter(google)
	state, cookie := startLogin(t, router)

	rec := callback(router, "state="+state+"&code=abc", cookie)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "google sign-in failed", location.Query().Get("authError"))
}
