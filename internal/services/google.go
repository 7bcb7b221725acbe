package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/pixelvault/apiserver/config"
	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/store"
	"github.com/pixelvault/apiserver/types"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var usernameStrip = regexp.MustCompile(`[^a-z0-9_]+`)

// GoogleProfile is the subset of the Google userinfo response we use.
type GoogleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleAuth signs users in with Google. Accounts it creates are
// externally authenticated and never carry a password hash.
type GoogleAuth struct {
	oauth       *oauth2.Config
	users       UserRepository
	auth        *AuthService
	userInfoURL string
	logger      zerolog.Logger
}

func NewGoogleAuth(cfg config.OAuthConfig, users UserRepository, auth *AuthService, logger zerolog.Logger) *GoogleAuth {
	return &GoogleAuth{
		oauth: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			Endpoint:     google.Endpoint,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"openid", "email", "profile"},
		},
		users:       users,
		auth:        auth,
		userInfoURL: googleUserInfoURL,
		logger:      logger.With().Str("component", "google_auth").Logger(),
	}
}

func (g *GoogleAuth) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for the caller's Google profile.
func (g *GoogleAuth) Exchange(ctx context.Context, code string) (GoogleProfile, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return GoogleProfile{}, apperr.Unauthorized("google sign-in failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return GoogleProfile{}, err
	}
	resp, err := g.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return GoogleProfile{}, apperr.External("failed to fetch google profile", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return GoogleProfile{}, apperr.External("failed to fetch google profile", fmt.Errorf("userinfo status %d", resp.StatusCode))
	}

	var profile GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return GoogleProfile{}, apperr.External("failed to decode google profile", err)
	}
	return profile, nil
}

// FindOrCreate resolves profile to an account: by Google id, then by email
// for external accounts, otherwise a new external account is created. An
// email owned by a local account is a conflict.
func (g *GoogleAuth) FindOrCreate(ctx context.Context, profile GoogleProfile) (types.User, error) {
	if profile.ID == "" || profile.Email == "" {
		return types.User{}, apperr.Validation("email", "google profile has no email")
	}
	if !profile.VerifiedEmail {
		return types.User{}, apperr.Forbidden("google email is not verified")
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))

	user, err := g.users.GetByGoogleID(ctx, profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, err
	}

	user, err = g.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !user.IsExternallyAuthenticated {
			return types.User{}, apperr.Conflict("email", "email is registered with a password account")
		}
		user.GoogleID = profile.ID
		return g.users.Update(ctx, user)
	case !errors.Is(err, store.ErrNotFound):
		return types.User{}, err
	}

	base := usernameFromEmail(email)
	for attempt := 0; attempt < 5; attempt++ {
		username := base
		if attempt > 0 {
			username = fmt.Sprintf("%s%d", truncate(base, 17), attempt+1)
		}
		if _, err := g.users.GetByUsername(ctx, username); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			return types.User{}, err
		}

		displayName := strings.TrimSpace(profile.Name)
		if displayName == "" {
			displayName = username
		}
		created, err := g.users.Create(ctx, types.User{
			Username:                  username,
			Email:                     email,
			DisplayName:               displayName,
			AvatarURL:                 profile.Picture,
			IsExternallyAuthenticated: true,
			GoogleID:                  profile.ID,
		})
		if errors.Is(err, store.ErrConflict) && store.ConflictField(err) == "username" {
			continue
		}
		if err != nil {
			return types.User{}, mapStoreError(err, "user not found")
		}
		g.logger.Info().Str("user_id", created.ID.String()).Msg("external account created")
		return created, nil
	}
	return types.User{}, apperr.Conflict("username", "could not allocate a username")
}

// SignIn opens a session for profile exactly like a password sign-in.
func (g *GoogleAuth) SignIn(ctx context.Context, profile GoogleProfile) (types.User, string, error) {
	user, err := g.FindOrCreate(ctx, profile)
	if err != nil {
		return types.User{}, "", err
	}
	secret, _, err := g.auth.IssueSession(ctx, user.ID)
	if err != nil {
		return types.User{}, "", err
	}
	return user, secret, nil
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	name := usernameStrip.ReplaceAllString(strings.ToLower(local), "")
	name = truncate(name, 20)
	for len(name) < 3 {
		name += "_"
	}
	return name
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
