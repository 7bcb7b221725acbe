package handlers

import (
	"net/http"
	"time"
)

const refreshCookieName = "refreshToken"

// RefreshCookie writes the HTTP-only cookie carrying the refresh secret.
// Production cookies are Secure and SameSite=None so a frontend on
// another origin can send them.
type RefreshCookie struct {
	Production bool
	TTL        time.Duration
}

func (c RefreshCookie) base() *http.Cookie {
	cookie := &http.Cookie{
		Name:     refreshCookieName,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if c.Production {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}

// Set stores secret until expiresAt.
func (c RefreshCookie) Set(w http.ResponseWriter, secret string, expiresAt time.Time) {
	cookie := c.base()
	cookie.Value = secret
	cookie.MaxAge = int(c.TTL.Seconds())
	cookie.Expires = expiresAt.UTC()
	http.SetCookie(w, cookie)
}

// Clear expires the cookie on the client.
func (c RefreshCookie) Clear(w http.ResponseWriter) {
	cookie := c.base()
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)
}

// Read returns the presented refresh secret, or "".
func (c RefreshCookie) Read(r *http.Request) string {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
