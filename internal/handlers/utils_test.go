package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pixelvault/apiserver/internal/apperr"
)

func TestResponderStatusAndDetail(t *testing.T) {
	cases := []struct {
		name       string
		production bool
		err        error
		status     int
		want       ErrorResponse
	}{
		{
			name:   "validation keeps field",
			err:    apperr.Validation("email", "invalid email"),
			status: http.StatusBadRequest,
			want:   ErrorResponse{Error: "invalid email", Field: "email"},
		},
		{
			name:   "untagged error in development",
			err:    errors.New("pq: relation missing"),
			status: http.StatusInternalServerError,
			want:   ErrorResponse{Error: "internal server error", Detail: "pq: relation missing"},
		},
		{
			name:       "untagged error in production",
			production: true,
			err:        errors.New("pq: relation missing"),
			status:     http.StatusInternalServerError,
			want:       ErrorResponse{Error: "internal server error"},
		},
		{
			name:       "external error",
			production: true,
			err:        apperr.External("image upload failed", errors.New("timeout")),
			status:     http.StatusBadGateway,
			want:       ErrorResponse{Error: "image upload failed"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Responder{Production: tc.production}.Fail(rec, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.want, decode[ErrorResponse](t, rec))
		})
	}
}

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query string
		page  int
		limit int
	}{
		{"", 1, 20},
		{"?page=3&limit=5", 3, 5},
		{"?per_page=7", 1, 7},
		{"?page=-1&limit=1000", 1, 100},
		{"?page=abc&limit=xyz", 1, 20},
	}
	for _, tc := range cases {
		page, limit := parsePagination(httptest.NewRequest(http.MethodGet, "/images"+tc.query, nil))
		assert.Equal(t, tc.page, page, tc.query)
		assert.Equal(t, tc.limit, limit, tc.query)
	}
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, bearerToken(req))

	req.Header.Set("Authorization", "bearer  abc.def.ghi ")
	assert.Equal(t, "abc.def.ghi", bearerToken(req))
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
