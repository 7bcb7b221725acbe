package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/middleware"
	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/types"
)

// AuthHandler serves sign-up, sign-in, sign-out and refresh.
type AuthHandler struct {
	auth   *services.AuthService
	cookie RefreshCookie
	resp   Responder
}

func NewAuthHandler(auth *services.AuthService, cookie RefreshCookie, resp Responder) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie, resp: resp}
}

// AuthRouter registers auth routes on the given router. limit guards the
// credential-accepting endpoints.
func AuthRouter(r chi.Router, handler *AuthHandler, limit func(http.Handler) http.Handler) {
	r.With(limit).Post("/signup", handler.SignUp)
	r.With(limit).Post("/signin", handler.SignIn)
	r.With(limit).Post("/refresh", handler.Refresh)
	r.Post("/signout", handler.SignOut)
}

type SignUpResponse struct {
	Message string            `json:"message"`
	User    types.UserSummary `json:"user"`
}

// SignUp creates a local account. The caller still has to sign in.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req services.SignUpInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}

	user, err := h.auth.SignUp(r.Context(), req)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, SignUpResponse{Message: "account created", User: user.Summary()})
}

type SignInRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SignInResponse struct {
	AccessToken string            `json:"accessToken"`
	User        types.UserSummary `json:"user"`
}

// SignIn verifies credentials, sets the refresh cookie and returns an
// access token. The refresh secret never appears in the body.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}

	result, err := h.auth.SignIn(r.Context(), req.Username, req.Password)
	middleware.RecordAuthOutcome("signin", err == nil)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}

	h.cookie.Set(w, result.RefreshToken, result.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, SignInResponse{AccessToken: result.AccessToken, User: result.User})
}

// SignOut deletes the presented session, if any, and always clears the cookie.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	err := h.auth.SignOut(r.Context(), h.cookie.Read(r))
	middleware.RecordAuthOutcome("signout", err == nil)
	h.cookie.Clear(w)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "signed out"})
}

type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Refresh exchanges the refresh cookie for a new access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, err := h.auth.Refresh(r.Context(), h.cookie.Read(r))
	middleware.RecordAuthOutcome("refresh", err == nil)
	if err != nil {
		if apperr.Is(err, apperr.KindForbidden) {
			h.cookie.Clear(w)
		}
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{AccessToken: token})
}
