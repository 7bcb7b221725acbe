package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/types"
)

type CategoryHandler struct {
	categories *services.CategoryService
	resp       Responder
}

func NewCategoryHandler(categories *services.CategoryService, resp Responder) *CategoryHandler {
	return &CategoryHandler{categories: categories, resp: resp}
}

// CategoryRouter registers category routes. Reads are public; writes need
// the manageCategories capability.
func CategoryRouter(r chi.Router, handler *CategoryHandler, guard *Guard) {
	r.Get("/", handler.List)
	r.Get("/{categoryID}", handler.Get)

	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticate, guard.RequireAdmin, guard.RequirePermission(types.CapManageCategories))
		r.Post("/", handler.Create)
		r.Put("/{categoryID}", handler.Update)
		r.Delete("/{categoryID}", handler.Delete)
	})
}

type CategoryListResponse struct {
	Categories []types.Category `json:"categories"`
}

type CategoryResponse struct {
	Category types.Category `json:"category"`
}

func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if categories == nil {
		categories = []types.Category{}
	}
	writeJSON(w, http.StatusOK, CategoryListResponse{Categories: categories})
}

func (h *CategoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "categoryID", "category")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	category, err := h.categories.Get(r.Context(), id)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CategoryResponse{Category: category})
}

func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CategoryInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	category, err := h.categories.Create(r.Context(), req)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CategoryResponse{Category: category})
}

func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "categoryID", "category")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	var req services.CategoryInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	category, err := h.categories.Update(r.Context(), id, req)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CategoryResponse{Category: category})
}

func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "categoryID", "category")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if err := h.categories.Delete(r.Context(), id); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "category deleted"})
}
