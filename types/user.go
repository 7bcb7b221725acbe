package types

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account in the system.
// It contains identity, profile, admin flags, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID uuid.UUID `json:"id" db:"id"`

	// Username is the unique, lowercase login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's unique, lowercase email address.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// It is empty for externally authenticated accounts and never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// DisplayName is the name shown next to the user's images.
	DisplayName string `json:"displayName" db:"display_name"`

	// AvatarURL is the public URL of the user's avatar, if any.
	AvatarURL string `json:"avatarUrl,omitempty" db:"avatar_url"`

	// AvatarPublicID is the media provider identifier of the avatar object.
	AvatarPublicID string `json:"-" db:"avatar_public_id"`

	// Bio is a short free-text description (at most 500 characters).
	Bio string `json:"bio,omitempty" db:"bio"`

	// IsAdmin marks accounts allowed past the admin gate.
	IsAdmin bool `json:"isAdmin" db:"is_admin"`

	// IsSuperAdmin is the bootstrap flag granting every capability,
	// even when no permission grant exists for the account.
	IsSuperAdmin bool `json:"isSuperAdmin" db:"is_super_admin"`

	// IsExternallyAuthenticated marks accounts created through Google sign-in.
	// Such accounts never carry a password hash.
	IsExternallyAuthenticated bool `json:"isExternallyAuthenticated" db:"is_externally_authenticated"`

	// GoogleID is the subject identifier returned by Google, if linked.
	GoogleID string `json:"-" db:"google_id"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// UserSummary is the minimal account view returned on sign-in.
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
}

// Summary returns the minimal view of u.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

// PublicProfile is what other users see.
type PublicProfile struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (u User) PublicProfile() PublicProfile {
	return PublicProfile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Bio:         u.Bio,
		CreatedAt:   u.CreatedAt,
	}
}

// HasPassword reports whether u can sign in with a local password.
func (u User) HasPassword() bool {
	return !u.IsExternallyAuthenticated && u.PasswordHash != ""
}

// UserFilter selects users in admin listings.
type UserFilter struct {
	Search string
	Page   int
	Limit  int
}
