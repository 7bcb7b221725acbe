package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/types"
)

// CollectionHandler serves the caller's private collections.
type CollectionHandler struct {
	collections *services.CollectionService
	resp        Responder
}

func NewCollectionHandler(collections *services.CollectionService, resp Responder) *CollectionHandler {
	return &CollectionHandler{collections: collections, resp: resp}
}

func CollectionRouter(r chi.Router, handler *CollectionHandler, guard *Guard) {
	r.Use(guard.Authenticate)
	r.Get("/", handler.List)
	r.Post("/", handler.Create)
	r.Get("/{collectionID}", handler.Get)
	r.Put("/{collectionID}", handler.Update)
	r.Delete("/{collectionID}", handler.Delete)
	r.Post("/{collectionID}/images", handler.AddImage)
	r.Delete("/{collectionID}/images/{imageID}", handler.RemoveImage)
}

type CollectionListResponse struct {
	Collections []types.Collection `json:"collections"`
}

type CollectionResponse struct {
	Collection types.Collection `json:"collection"`
}

type AddImageRequest struct {
	ImageID string `json:"imageId"`
}

func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	collections, err := h.collections.List(r.Context(), user.ID)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if collections == nil {
		collections = []types.Collection{}
	}
	writeJSON(w, http.StatusOK, CollectionListResponse{Collections: collections})
}

func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	var req services.CollectionInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	collection, err := h.collections.Create(r.Context(), user.ID, req)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CollectionResponse{Collection: collection})
}

func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	id, err := uuidParam(r, "collectionID", "collection")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	collection, err := h.collections.Get(r.Context(), user.ID, id)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionResponse{Collection: collection})
}

func (h *CollectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	id, err := uuidParam(r, "collectionID", "collection")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	var req services.CollectionInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	collection, err := h.collections.Update(r.Context(), user.ID, id, req)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionResponse{Collection: collection})
}

func (h *CollectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	id, err := uuidParam(r, "collectionID", "collection")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if err := h.collections.Delete(r.Context(), user.ID, id); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "collection deleted"})
}

func (h *CollectionHandler) AddImage(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	id, err := uuidParam(r, "collectionID", "collection")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	var req AddImageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	imageID, err := uuid.Parse(req.ImageID)
	if err != nil {
		h.resp.Fail(w, r, apperr.Validation("imageId", "invalid image id"))
		return
	}

	collection, err := h.collections.AddImage(r.Context(), user.ID, id, imageID)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionResponse{Collection: collection})
}

func (h *CollectionHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	id, err := uuidParam(r, "collectionID", "collection")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	imageID, err := uuidParam(r, "imageID", "image")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	collection, err := h.collections.RemoveImage(r.Context(), user.ID, id, imageID)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionResponse{Collection: collection})
}
