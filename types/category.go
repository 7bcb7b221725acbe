package types

import (
	"time"

	"github.com/google/uuid"
)

// Category groups images. Names are unique regardless of case.
type Category struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`

	// ImageCount is computed on reads.
	ImageCount int `json:"imageCount" db:"image_count"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Collection is a user's personal, ordered set of images.
type Collection struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"userId" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`

	// ImageIDs lists member images in the order they were added.
	ImageIDs []uuid.UUID `json:"imageIds"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// DashboardStats are the aggregate counts shown on the admin dashboard.
type DashboardStats struct {
	Users          int `json:"users"`
	Admins         int `json:"admins"`
	Images         int `json:"images"`
	Categories     int `json:"categories"`
	Collections    int `json:"collections"`
	ActiveSessions int `json:"activeSessions"`
	NewUsers7d     int `json:"newUsersLast7Days"`
}

// DeleteOutcome reports a best-effort cascade delete. Persisted is true once
// the account row is gone; CleanupErrors lists media objects that could not
// be destroyed.
type DeleteOutcome struct {
	Persisted     bool     `json:"persisted"`
	ImagesDeleted int      `json:"imagesDeleted"`
	CleanupErrors []string `json:"externalCleanupErrors"`
}
