package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/services"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	maxJSONBodyBytes = 1 << 20
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Field  string `json:"field,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// MessageResponse acknowledges requests that return no resource.
type MessageResponse struct {
	Message string `json:"message"`
}

// Responder turns service errors into HTTP responses. Internal details
// are only exposed outside production.
type Responder struct {
	Production bool
}

func (rs Responder) Fail(w http.ResponseWriter, r *http.Request, err error) {
	appErr, tagged := apperr.As(err)
	if !tagged {
		appErr = apperr.Internal("internal server error", err)
	}
	status := apperr.HTTPStatus(appErr.Kind)

	resp := ErrorResponse{Error: appErr.Message, Field: appErr.Field}
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Int("status", status).Msg("request failed")
		if !rs.Production {
			resp.Detail = err.Error()
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("", "request body is required")
		}
		return apperr.Validation("", "invalid request body")
	}
	return nil
}

// uuidParam parses a chi path parameter. Malformed ids cannot name an
// existing resource, so they are reported as not found.
func uuidParam(r *http.Request, name, resource string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, apperr.NotFound(resource + " not found")
	}
	return id, nil
}

func parsePagination(r *http.Request) (int, int) {
	page := 1
	limit := defaultPageLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}

	limitRaw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if limitRaw == "" {
		limitRaw = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if limitRaw != "" {
		if parsed, err := strconv.Atoi(limitRaw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

// formFile reads the named multipart file, rejecting anything larger than
// maxBytes. A missing file yields a zero Upload and a nil file, leaving the
// services to report it. The caller must close a non-nil file.
func formFile(r *http.Request, field string, maxBytes int64) (services.Upload, multipart.File, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return services.Upload{}, nil, nil
		}
		return services.Upload{}, nil, apperr.Validation(field, "invalid multipart form")
	}
	if header.Size > maxBytes {
		_ = file.Close()
		return services.Upload{}, nil, apperr.Validation(field, "file exceeds the maximum upload size")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return services.Upload{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        io.LimitReader(file, maxBytes),
	}, file, nil
}

// parseMultipart bounds the whole request body before parsing the form.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+maxJSONBodyBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Validation("image", "file exceeds the maximum upload size")
		}
		return apperr.Validation("", "invalid multipart form")
	}
	return nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
