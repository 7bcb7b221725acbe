package types

import (
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record backing a refresh token.
// A session exists only while its token is valid.
type Session struct {
	// Token is the opaque refresh secret. It is the session's identity.
	Token string `json:"-" db:"token"`

	// UserID references the owning account.
	UserID uuid.UUID `json:"userId" db:"user_id"`

	// ExpiresAt is the instant after which the token is no longer accepted.
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// SessionExpired is the single expiry predicate shared by the refresh path
// and the background sweep. The sweep's SQL uses the same comparison.
func SessionExpired(expiresAt, now time.Time) bool {
	return now.After(expiresAt)
}

// Expired reports whether s is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return SessionExpired(s.ExpiresAt, now)
}
