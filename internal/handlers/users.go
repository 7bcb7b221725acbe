package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/types"
)

// UserHandler serves the caller's own profile and public profiles.
type UserHandler struct {
	users          *services.UserService
	auth           *services.AuthService
	maxUploadBytes int64
	resp           Responder
}

func NewUserHandler(users *services.UserService, auth *services.AuthService, maxUploadBytes int64, resp Responder) *UserHandler {
	return &UserHandler{users: users, auth: auth, maxUploadBytes: maxUploadBytes, resp: resp}
}

// UserRouter registers profile routes. Static paths win over the
// {username} pattern in chi, so "me" is never looked up as a username.
func UserRouter(r chi.Router, handler *UserHandler, guard *Guard) {
	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticate)
		r.Get("/me", handler.Me)
		r.Put("/me", handler.UpdateMe)
		r.Put("/me/avatar", handler.UpdateAvatar)
		r.Put("/change-password", handler.ChangePassword)
	})
	r.Get("/{username}", handler.Profile)
}

type UserResponse struct {
	User types.User `json:"user"`
}

// Me returns the authenticated account.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	writeJSON(w, http.StatusOK, UserResponse{User: user})
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())

	var req services.ProfileUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	updated, err := h.users.UpdateProfile(r.Context(), user.ID, req)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: updated})
}

func (h *UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())

	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	upload, file, err := formFile(r, "avatar", h.maxUploadBytes)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if file != nil {
		defer file.Close()
	}

	updated, err := h.users.UpdateAvatar(r.Context(), user.ID, upload)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: updated})
}

// ChangePassword replaces the caller's password after checking the
// current one. Existing sessions are left alone.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())

	var req services.ChangePasswordInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if err := h.auth.ChangePassword(r.Context(), user.ID, req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "password updated"})
}

type ProfileResponse struct {
	User types.PublicProfile `json:"user"`
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.users.PublicProfile(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{User: profile})
}
