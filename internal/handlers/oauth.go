package handlers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog/hlog"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/middleware"
	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/types"
)

const (
	oauthSessionName = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

// GoogleSignIn is the part of services.GoogleAuth the callback flow uses.
type GoogleSignIn interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (services.GoogleProfile, error)
	SignIn(ctx context.Context, profile services.GoogleProfile) (types.User, string, error)
}

// OAuthHandler runs the Google authorization-code flow. The state value
// round-trips through a signed cookie so no server-side storage is needed.
type OAuthHandler struct {
	google      GoogleSignIn
	store       sessions.Store
	cookie      RefreshCookie
	frontendURL string
}

// NewStateStore creates the signed cookie store holding OAuth state.
func NewStateStore(secret string, production bool) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/auth/google",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   production,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

func NewOAuthHandler(google GoogleSignIn, store sessions.Store, cookie RefreshCookie, frontendURL string) *OAuthHandler {
	return &OAuthHandler{google: google, store: store, cookie: cookie, frontendURL: frontendURL}
}

// OAuthRouter registers the Google routes. A nil handler means Google
// sign-in is not configured and both routes answer 404.
func OAuthRouter(r chi.Router, handler *OAuthHandler) {
	if handler == nil {
		disabled := func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "google sign-in is not enabled")
		}
		r.Get("/google", disabled)
		r.Get("/google/callback", disabled)
		return
	}
	r.Get("/google", handler.Login)
	r.Get("/google/callback", handler.Callback)
}

// Login stores a fresh state value and redirects to Google.
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := newState()
	if err != nil {
		h.redirectError(w, r, apperr.Internal("failed to start sign-in", err))
		return
	}

	session, _ := h.store.Get(r, oauthSessionName)
	session.Values["state"] = state
	if err := session.Save(r, w); err != nil {
		h.redirectError(w, r, apperr.Internal("failed to start sign-in", err))
		return
	}
	http.Redirect(w, r, h.google.AuthCodeURL(state), http.StatusFound)
}

// Callback completes the flow, opens a session exactly like a password
// sign-in and sends the browser back to the frontend.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	session, _ := h.store.Get(r, oauthSessionName)
	expected, _ := session.Values["state"].(string)

	delete(session.Values, "state")
	session.Options.MaxAge = -1
	_ = session.Save(r, w)

	query := r.URL.Query()
	if reason := query.Get("error"); reason != "" {
		h.redirectError(w, r, apperr.Unauthorized("google sign-in was cancelled"))
		return
	}
	got := query.Get("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		h.redirectError(w, r, apperr.Forbidden("invalid oauth state"))
		return
	}
	code := query.Get("code")
	if code == "" {
		h.redirectError(w, r, apperr.Validation("code", "missing authorization code"))
		return
	}

	profile, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.redirectError(w, r, err)
		return
	}
	_, secret, err := h.google.SignIn(r.Context(), profile)
	middleware.RecordAuthOutcome("google", err == nil)
	if err != nil {
		h.redirectError(w, r, err)
		return
	}

	h.cookie.Set(w, secret, time.Now().Add(h.cookie.TTL))
	http.Redirect(w, r, h.frontendURL, http.StatusFound)
}

// redirectError sends the browser to the frontend with a readable reason.
func (h *OAuthHandler) redirectError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, tagged := apperr.As(err)
	message := "google sign-in failed"
	if tagged && appErr.Kind != apperr.KindInternal {
		message = appErr.Message
	}
	hlog.FromRequest(r).Warn().Err(err).Msg("google sign-in failed")

	target, parseErr := url.Parse(h.frontendURL)
	if parseErr != nil {
		writeError(w, http.StatusBadGateway, message)
		return
	}
	q := target.Query()
	q.Set("authError", message)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func newState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
