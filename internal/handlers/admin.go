package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/types"
)

// AdminHandler serves the moderation dashboard.
type AdminHandler struct {
	admin *services.AdminService
	resp  Responder
}

func NewAdminHandler(admin *services.AdminService, resp Responder) *AdminHandler {
	return &AdminHandler{admin: admin, resp: resp}
}

// AdminRouter registers dashboard routes. Every route needs an admin
// account and then the capability named on the route.
func AdminRouter(r chi.Router, handler *AdminHandler, roles *RoleHandler, guard *Guard) {
	r.Use(guard.Authenticate, guard.RequireAdmin)

	r.With(guard.RequirePermission(types.CapViewDashboard)).Get("/dashboard/stats", handler.Stats)

	r.Route("/users", func(r chi.Router) {
		r.With(guard.RequirePermission(types.CapManageUsers)).Get("/", handler.ListUsers)
		r.With(guard.RequirePermission(types.CapManageUsers)).Get("/{userID}", handler.GetUser)
		r.With(guard.RequirePermission(types.CapManageUsers)).Put("/{userID}", handler.UpdateUser)
		r.With(guard.RequirePermission(types.CapDeleteUsers)).Delete("/{userID}", handler.DeleteUser)
	})

	r.Route("/images", func(r chi.Router) {
		r.With(guard.RequirePermission(types.CapManageImages)).Get("/", handler.ListImages)
		r.With(guard.RequirePermission(types.CapDeleteImages)).Delete("/{imageID}", handler.DeleteImage)
	})

	r.Route("/roles", func(r chi.Router) {
		RoleRouter(r, roles, guard)
	})
}

type StatsResponse struct {
	Stats types.DashboardStats `json:"stats"`
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.Stats(r.Context())
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Stats: stats})
}

type UserListResponse struct {
	Users      []types.User     `json:"users"`
	Pagination types.Pagination `json:"pagination"`
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)
	users, pagination, err := h.admin.ListUsers(r.Context(), types.UserFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if users == nil {
		users = []types.User{}
	}
	writeJSON(w, http.StatusOK, UserListResponse{Users: users, Pagination: pagination})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "userID", "user")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	user, err := h.admin.GetUser(r.Context(), id)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: user})
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := CurrentUser(r.Context())
	id, err := uuidParam(r, "userID", "user")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	var req services.AdminUserUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	user, err := h.admin.UpdateUser(r.Context(), actor, id, req)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UserResponse{User: user})
}

type DeleteUserResponse struct {
	Message string              `json:"message"`
	Outcome types.DeleteOutcome `json:"outcome"`
}

// DeleteUser removes an account and everything it owns. Media objects that
// could not be destroyed are listed in the outcome rather than failing
// the request.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := CurrentUser(r.Context())
	id, err := uuidParam(r, "userID", "user")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	outcome, err := h.admin.DeleteUser(r.Context(), actor, id)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteUserResponse{Message: "user deleted", Outcome: outcome})
}

func (h *AdminHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	filter, err := imageFilter(r)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	images, pagination, err := h.admin.ListImages(r.Context(), filter)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if images == nil {
		images = []types.Image{}
	}
	writeJSON(w, http.StatusOK, ImageListResponse{Images: images, Pagination: pagination})
}

func (h *AdminHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	actor, _ := CurrentUser(r.Context())
	id, err := uuidParam(r, "imageID", "image")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if err := h.admin.DeleteImage(r.Context(), actor, id); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "image deleted"})
}
