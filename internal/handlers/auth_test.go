package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/apiserver/internal/middleware"
)

var aliceSignUp = map[string]string{
	"username":  "alice",
	"password":  "Password1",
	"email":     "alice@example.com",
	"firstName": "Alice",
	"lastName":  "Lee",
}

var aliceCredentials = map[string]string{"username": "alice", "password": "Password1"}

func TestSignUpAndSignInSetsRefreshCookie(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(t, request{method: http.MethodPost, path: "/auth/signup", body: aliceSignUp})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Nil(t, findCookie(rec, refreshCookieName), "sign-up must not open a session")

	rec = api.do(t, request{method: http.MethodPost, path: "/auth/signin", body: aliceCredentials})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode[SignInResponse](t, rec)
	assert.NotEmpty(t, body.AccessToken)
	assert.Equal(t, "alice", body.User.Username)
	assert.Equal(t, "Alice Lee", body.User.DisplayName)

	cookie := findCookie(rec, refreshCookieName)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 7*24*60*60, cookie.MaxAge)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, api.sessions.Has(cookie.Value))
	assert.NotContains(t, rec.Body.String(), cookie.Value)
}

func TestProductionRefreshCookieIsCrossSite(t *testing.T) {
	api := newTestAPI(t, true)
	require.Equal(t, http.StatusCreated, api.do(t, request{method: http.MethodPost, path: "/auth/signup", body: aliceSignUp}).Code)

	rec := api.do(t, request{method: http.MethodPost, path: "/auth/signin", body: aliceCredentials})
	require.Equal(t, http.StatusOK, rec.Code)

	cookie := findCookie(rec, refreshCookieName)
	require.NotNil(t, cookie)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
}

func TestSignUpDuplicate(t *testing.T) {
	api := newTestAPI(t, false)
	require.Equal(t, http.StatusCreated, api.do(t, request{method: http.MethodPost, path: "/auth/signup", body: aliceSignUp}).Code)

	rec := api.do(t, request{method: http.MethodPost, path: "/auth/signup", body: aliceSignUp})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "username", decode[ErrorResponse](t, rec).Field)
}

func TestSignInFailuresLookAlike(t *testing.T) {
	api := newTestAPI(t, false)
	require.Equal(t, http.StatusCreated, api.do(t, request{method: http.MethodPost, path: "/auth/signup", body: aliceSignUp}).Code)

	wrongPassword := api.do(t, request{method: http.MethodPost, path: "/auth/signin",
		body: map[string]string{"username": "alice", "password": "Password2"}})
	unknownUser := api.do(t, request{method: http.MethodPost, path: "/auth/signin",
		body: map[string]string{"username": "bob", "password": "Password1"}})

	assert.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	assert.Equal(t, http.StatusUnauthorized, unknownUser.Code)
	assert.Equal(t, wrongPassword.Body.String(), unknownUser.Body.String())
	assert.Nil(t, findCookie(wrongPassword, refreshCookieName))
}

func TestRefresh(t *testing.T) {
	api := newTestAPI(t, false)

	rec := api.do(t, request{method: http.MethodPost, path: "/auth/refresh"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, request{method: http.MethodPost, path: "/auth/refresh",
		cookies: []*http.Cookie{{Name: refreshCookieName, Value: "not-a-session"}}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	require.Equal(t, http.StatusCreated, api.do(t, request{method: http.MethodPost, path: "/auth/signup", body: aliceSignUp}).Code)
	signin := api.do(t, request{method: http.MethodPost, path: "/auth/signin", body: aliceCredentials})
	cookie := findCookie(signin, refreshCookieName)
	require.NotNil(t, cookie)

	rec = api.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookies: []*http.Cookie{cookie}})
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[RefreshResponse](t, rec).AccessToken
	assert.NotEmpty(t, token)
	assert.Nil(t, findCookie(rec, refreshCookieName), "refresh does not rotate the secret")

	me := api.do(t, request{method: http.MethodGet, path: "/users/me", token: token})
	assert.Equal(t, http.StatusOK, me.Code)
}

// Sign-out cuts off the refresh path but an access token stays usable
// until it expires.
func TestAccessTokenOutlivesSignOut(t *testing.T) {
	api := newTestAPI(t, false)
	require.Equal(t, http.StatusCreated, api.do(t, request{method: http.MethodPost, path: "/auth/signup", body: aliceSignUp}).Code)

	signin := api.do(t, request{method: http.MethodPost, path: "/auth/signin", body: aliceCredentials})
	require.Equal(t, http.StatusOK, signin.Code)
	token := decode[SignInResponse](t, signin).AccessToken
	cookie := findCookie(signin, refreshCookieName)
	require.NotNil(t, cookie)

	me := api.do(t, request{method: http.MethodGet, path: "/users/me", token: token})
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "Alice Lee", decode[UserResponse](t, me).User.DisplayName)

	signout := api.do(t, request{method: http.MethodPost, path: "/auth/signout", cookies: []*http.Cookie{cookie}})
	require.Equal(t, http.StatusOK, signout.Code)
	cleared := findCookie(signout, refreshCookieName)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
	assert.False(t, api.sessions.Has(cookie.Value))

	me = api.do(t, request{method: http.MethodGet, path: "/users/me", token: token})
	assert.Equal(t, http.StatusOK, me.Code)

	refresh := api.do(t, request{method: http.MethodPost, path: "/auth/refresh", cookies: []*http.Cookie{cookie}})
	assert.Equal(t, http.StatusForbidden, refresh.Code)

	again := api.do(t, request{method: http.MethodPost, path: "/auth/signout", cookies: []*http.Cookie{cookie}})
	assert.Equal(t, http.StatusOK, again.Code)
}

func TestMalformedBody(t *testing.T) {
	api := newTestAPI(t, false)
	r := request{method: http.MethodPost, path: "/auth/signin"}

	rec := api.do(t, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGoogleRoutesDisabled(t *testing.T) {
	api := newTestAPI(t, false)
	assert.Equal(t, http.StatusNotFound, api.do(t, request{method: http.MethodGet, path: "/auth/google"}).Code)
	assert.Equal(t, http.StatusNotFound, api.do(t, request{method: http.MethodGet, path: "/auth/google/callback"}).Code)
}

func TestSignInRateLimited(t *testing.T) {
	limiter := middleware.NewMemoryLimiter(1, 1)
	api := newLimitedTestAPI(t, true, middleware.RateLimit(limiter, "auth", Responder{Production: true}.Fail))

	rec := api.do(t, request{method: http.MethodPost, path: "/auth/signin", body: aliceCredentials})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, request{method: http.MethodPost, path: "/auth/signin", body: aliceCredentials})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, ErrorResponse{Error: "too many requests, please try again later"}, decode[ErrorResponse](t, rec))

	rec = api.do(t, request{method: http.MethodPost, path: "/auth/signout"})
	assert.Equal(t, http.StatusOK, rec.Code)
}
