package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/types"
)

type contextKey string

const (
	contextUserKey  contextKey = "user"
	contextGrantKey contextKey = "grant"
)

// CurrentUser returns the account attached by Guard.Authenticate.
func CurrentUser(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

// CurrentGrant returns the permission grant resolved by a permission
// check, if the caller holds one.
func CurrentGrant(ctx context.Context) (*types.PermissionGrant, bool) {
	grant, ok := ctx.Value(contextGrantKey).(*types.PermissionGrant)
	return grant, ok && grant != nil
}

// Guard holds the authentication and authorization middleware.
type Guard struct {
	auth  *services.AuthService
	authz *services.Authorizer
	resp  Responder
}

func NewGuard(auth *services.AuthService, authz *services.Authorizer, resp Responder) *Guard {
	return &Guard{auth: auth, authz: authz, resp: resp}
}

// Authenticate requires a valid bearer access token and loads its account.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := g.auth.Authenticate(r.Context(), bearerToken(r))
		if err != nil {
			g.resp.Fail(w, r, err)
			return
		}

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", user.ID.String())
		})
		ctx := context.WithValue(r.Context(), contextUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin admits accounts flagged as admins. It must run after
// Authenticate.
func (g *Guard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := CurrentUser(r.Context())
		if !ok {
			g.resp.Fail(w, r, apperr.Unauthorized("authentication required"))
			return
		}
		if err := g.authz.RequireAdmin(user); err != nil {
			g.resp.Fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission admits callers holding capability.
func (g *Guard) RequirePermission(capability types.Capability) func(http.Handler) http.Handler {
	return g.check(func(ctx context.Context, user types.User) (*types.PermissionGrant, error) {
		return g.authz.RequirePermission(ctx, user, capability)
	})
}

// RequireSuperAdmin admits super-admins by role or by bootstrap flag.
func (g *Guard) RequireSuperAdmin(next http.Handler) http.Handler {
	return g.check(g.authz.RequireSuperAdmin)(next)
}

func (g *Guard) check(resolve func(context.Context, types.User) (*types.PermissionGrant, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				g.resp.Fail(w, r, apperr.Unauthorized("authentication required"))
				return
			}
			grant, err := resolve(r.Context(), user)
			if err != nil {
				g.resp.Fail(w, r, err)
				return
			}
			ctx := r.Context()
			if grant != nil {
				ctx = context.WithValue(ctx, contextGrantKey, grant)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken returns the token from an "Authorization: Bearer" header,
// or "" when the header is absent or uses another scheme.
func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
