package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/types"
)

// ImageHandler serves the public gallery and image uploads.
type ImageHandler struct {
	images         *services.ImageService
	maxUploadBytes int64
	resp           Responder
}

func NewImageHandler(images *services.ImageService, maxUploadBytes int64, resp Responder) *ImageHandler {
	return &ImageHandler{images: images, maxUploadBytes: maxUploadBytes, resp: resp}
}

// ImageRouter registers image routes on the given router.
func ImageRouter(r chi.Router, handler *ImageHandler, guard *Guard) {
	r.Get("/", handler.List)
	r.Get("/{imageID}", handler.Get)

	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticate)
		r.Post("/upload", handler.Upload)
		r.Put("/{imageID}", handler.Update)
		r.Delete("/{imageID}", handler.Delete)
	})
}

type ImageListResponse struct {
	Images     []types.Image    `json:"images"`
	Pagination types.Pagination `json:"pagination"`
}

type ImageResponse struct {
	Image types.Image `json:"image"`
}

// List returns one page of images matching the query filters.
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := imageFilter(r)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}

	images, pagination, err := h.images.List(r.Context(), filter)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if images == nil {
		images = []types.Image{}
	}
	writeJSON(w, http.StatusOK, ImageListResponse{Images: images, Pagination: pagination})
}

func imageFilter(r *http.Request) (types.ImageFilter, error) {
	page, limit := parsePagination(r)
	filter := types.ImageFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   page,
		Limit:  limit,
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return types.ImageFilter{}, apperr.Validation("category", "invalid category id")
		}
		filter.CategoryID = &id
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("user")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return types.ImageFilter{}, apperr.Validation("user", "invalid user id")
		}
		filter.UserID = &id
	}
	return filter, nil
}

func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "imageID", "image")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	image, err := h.images.Get(r.Context(), id)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ImageResponse{Image: image})
}

// Upload accepts a multipart form with the image file and its metadata.
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())

	if err := parseMultipart(w, r, h.maxUploadBytes); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	upload, file, err := formFile(r, "image", h.maxUploadBytes)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if file != nil {
		defer file.Close()
	}

	image, err := h.images.Upload(r.Context(), user, services.UploadInput{
		Title:       r.FormValue("imageTitle"),
		Category:    r.FormValue("imageCategory"),
		Location:    r.FormValue("location"),
		CameraModel: r.FormValue("cameraModel"),
		File:        upload,
	})
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ImageResponse{Image: image})
}

func (h *ImageHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	id, err := uuidParam(r, "imageID", "image")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}

	var req services.ImageUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	image, err := h.images.Update(r.Context(), user, id, req)
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ImageResponse{Image: image})
}

func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, _ := CurrentUser(r.Context())
	id, err := uuidParam(r, "imageID", "image")
	if err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	if err := h.images.Delete(r.Context(), user, id); err != nil {
		h.resp.Fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "image deleted"})
}
