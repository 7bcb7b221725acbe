package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/types"
)

// RoleHandler lets super-admins delegate and revoke admin permissions.
type RoleHandler struct {
	roles *services.RoleService
	resp  Responder
}

func NewRoleHandler(roles *services.RoleService, resp Responder) *RoleHandler {
	return &RoleHandler{roles: roles, resp: resp}
}

// RoleRouter expects Authenticate to have already run.
func RoleRouter(r chi.Router, handler *RoleHandler, guard *Guard) {
	r.Use(guard.RequireSuperAdmin)
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Get("/{userID}", handler.Get)
	r.Put("/{userID}", handler.Update)
	r.Delete("/{userID}", handler.Revoke)
}

type GrantRequest struct {
	UserID      string             `json:"userId"`
	Role        types.Role         `json:"role"`
	Permissions *types.Permissions `json:"permissions"`
}

func (g GrantRequest) input() services.GrantInput {
	return services.GrantInput{Role: g.Role, Permissions: g.Permissions}
}

type RoleListResponse struct {
	Admins []types.AdminEntry `json:"admins"`
}

type RoleEntryResponse struct {
	Admin types.AdminEntry `json:"admin"`
}

type GrantResponse struct {
	Grant types.PermissionGrant `json:"grant"`
}

func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.roles.List(r.Context())
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RoleListResponse{Admins: entries})
}

func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "userID", "user")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	entry, err := h.roles.Get(r.Context(), id)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, RoleEntryResponse{Admin: entry})
}

func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := CurrentUser(r.Context())
	var req GrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	target, err := uuid.Parse(req.UserID)
	if err != nil {
		h.resp.Fail(w, r, apperr.Validation("userId", "invalid user id"))
		return
	}

	grant, err := h.roles.Create(r.Context(), actor, target, req.input())
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, GrantResponse{Grant: grant})
}

func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := CurrentUser(r.Context())
	target, err := uuidParam(r, "userID", "user")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	var req GrantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	grant, err := h.roles.Update(r.Context(), actor, target, req.input())
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GrantResponse{Grant: grant})
}

func (h *RoleHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	actor, _ := CurrentUser(r.Context())
	target, err := uuidParam(r, "userID", "user")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if err := h.roles.Revoke(r.Context(), actor, target); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "permissions revoked"})
}
