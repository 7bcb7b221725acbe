package types

import (
	"time"

	"github.com/google/uuid"
)

// Image represents an uploaded photo in the gallery.
// The binary lives with the media provider; the record keeps its URL and
// the provider's opaque identifier used to destroy it.
type Image struct {
	// ID is the unique identifier of the image.
	ID uuid.UUID `json:"id" db:"id"`

	// Title is the human-readable name of the photo.
	Title string `json:"title" db:"title"`

	// URL is the public address of the stored object.
	URL string `json:"url" db:"url"`

	// PublicID is the media provider's identifier for the object.
	PublicID string `json:"publicId" db:"public_id"`

	// CategoryID references the category the image belongs to.
	CategoryID uuid.UUID `json:"categoryId" db:"category_id"`

	// CategoryName is joined in on reads.
	CategoryName string `json:"categoryName,omitempty" db:"category_name"`

	// Location is where the photo was taken, if provided.
	Location string `json:"location,omitempty" db:"location"`

	// CameraModel is the camera used, if provided.
	CameraModel string `json:"cameraModel,omitempty" db:"camera_model"`

	// UserID references the uploading account.
	UserID uuid.UUID `json:"userId" db:"user_id"`

	// Username is joined in on reads.
	Username string `json:"username,omitempty" db:"username"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// ImageFilter is the predicate used to list images. Stores translate it into
// their own query language.
type ImageFilter struct {
	// Search is matched case-insensitively against title, location and camera model.
	Search     string
	CategoryID *uuid.UUID
	UserID     *uuid.UUID
	Page       int
	Limit      int
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes page totals for total matching rows.
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// MediaAsset is what the media provider returns for a stored object.
type MediaAsset struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// MediaCleanupEvent asks the worker to retry destroying an orphaned object.
type MediaCleanupEvent struct {
	PublicID string    `json:"publicId"`
	Reason   string    `json:"reason"`
	QueuedAt time.Time `json:"queuedAt"`
}
