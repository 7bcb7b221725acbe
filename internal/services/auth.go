package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/store"
	"github.com/pixelvault/apiserver/internal/validation"
	"github.com/pixelvault/apiserver/types"
)

const (
	defaultRefreshTTL = 7 * 24 * time.Hour
	minBcryptCost     = 10

	msgInvalidCredentials = "invalid username or password"
)

// SessionRepository defines persistence operations for refresh sessions.
type SessionRepository interface {
	Create(ctx context.Context, session types.Session) error
	Get(ctx context.Context, token string) (types.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuthService implements sign-up, sign-in, sign-out, refresh and access
// token authentication.
type AuthService struct {
	users      UserRepository
	sessions   SessionRepository
	tokens     *TokenIssuer
	validator  *validation.Validator
	refreshTTL time.Duration
	bcryptCost int
	now        func() time.Time
	logger     zerolog.Logger

	// dummyHash is compared against when the user does not exist so both
	// failure paths spend the same bcrypt time.
	dummyHash []byte
}

type AuthOption func(*AuthService)

func WithRefreshTTL(ttl time.Duration) AuthOption {
	return func(s *AuthService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) {
		if cost >= minBcryptCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

// WithClock overrides the time source for the service and its token issuer.
func WithClock(fn func() time.Time) AuthOption {
	return func(s *AuthService) {
		if fn != nil {
			s.now = fn
			s.tokens.now = fn
		}
	}
}

func NewAuthService(users UserRepository, sessions SessionRepository, tokens *TokenIssuer, logger zerolog.Logger, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:      users,
		sessions:   sessions,
		tokens:     tokens,
		validator:  validation.New(),
		refreshTTL: defaultRefreshTTL,
		bcryptCost: bcrypt.DefaultCost + 2,
		now:        time.Now,
		logger:     logger.With().Str("component", "auth").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost)
	return s
}

// RefreshTTL is the lifetime of new sessions.
func (s *AuthService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// SignUpInput carries a local registration.
type SignUpInput struct {
	Username  string `json:"username" validate:"required,username"`
	Password  string `json:"password" validate:"required,password"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
}

func (in *SignUpInput) normalize() {
	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
}

// SignUp creates a local account. It does not sign the user in.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (types.User, error) {
	in.normalize()
	if err := s.validator.Struct(in); err != nil {
		return types.User{}, err
	}

	existing, err := s.users.FindByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return types.User{}, err
	}
	if err := duplicateAccount(existing, in.Username, in.Email); err != nil {
		return types.User{}, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return types.User{}, apperr.Internal("failed to create user", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hashed),
		DisplayName:  in.FirstName + " " + in.LastName,
	})
	if err != nil {
		// Lost a race with a concurrent sign-up.
		if errors.Is(err, store.ErrConflict) {
			field := store.ConflictField(err)
			return types.User{}, apperr.Conflict(field, field+" already exists")
		}
		return types.User{}, err
	}

	s.logger.Info().Str("user_id", user.ID.String()).Msg("account created")
	return user, nil
}

func duplicateAccount(existing []types.User, username, email string) error {
	for _, user := range existing {
		if user.Username == username {
			return apperr.Conflict("username", "username already exists")
		}
	}
	for _, user := range existing {
		if user.Email == email {
			return apperr.Conflict("email", "email already exists")
		}
	}
	return nil
}

// SignInResult is what a successful sign-in produces. RefreshToken must
// only ever reach the client through the refresh cookie.
type SignInResult struct {
	AccessToken      string
	User             types.UserSummary
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// SignIn checks credentials and opens a new session. Unknown users,
// externally authenticated users and wrong passwords all fail identically.
func (s *AuthService) SignIn(ctx context.Context, username, password string) (SignInResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || password == "" {
		return SignInResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return SignInResult{}, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return SignInResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}
	if !user.HasPassword() {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return SignInResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return SignInResult{}, apperr.Unauthorized(msgInvalidCredentials)
	}

	accessToken, err := s.tokens.Issue(user.ID)
	if err != nil {
		return SignInResult{}, apperr.Internal("failed to create token", err)
	}
	refresh, expiresAt, err := s.IssueSession(ctx, user.ID)
	if err != nil {
		return SignInResult{}, err
	}

	return SignInResult{
		AccessToken:      accessToken,
		User:             user.Summary(),
		RefreshToken:     refresh,
		RefreshExpiresAt: expiresAt,
	}, nil
}

// IssueSession stores a fresh refresh secret for userID.
func (s *AuthService) IssueSession(ctx context.Context, userID uuid.UUID) (string, time.Time, error) {
	secret, err := newRefreshSecret()
	if err != nil {
		return "", time.Time{}, apperr.Internal("failed to create session", err)
	}
	now := s.now().UTC()
	session := types.Session{
		Token:     secret,
		UserID:    userID,
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return "", time.Time{}, apperr.Internal("failed to create session", err)
	}
	return secret, session.ExpiresAt, nil
}

// SignOut deletes the session behind refreshToken, if any. It is idempotent.
func (s *AuthService) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.Delete(ctx, refreshToken)
}

// Refresh exchanges a valid refresh secret for a new access token. The
// secret itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if refreshToken == "" {
		return "", apperr.Unauthorized("refresh token not found")
	}

	session, err := s.sessions.Get(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", apperr.Forbidden("invalid or expired refresh token")
		}
		return "", err
	}
	if session.Expired(s.now()) {
		if err := s.sessions.Delete(ctx, refreshToken); err != nil {
			s.logger.Warn().Err(err).Msg("failed to delete expired session")
		}
		return "", apperr.Forbidden("refresh token expired")
	}

	accessToken, err := s.tokens.Issue(session.UserID)
	if err != nil {
		return "", apperr.Internal("failed to create token", err)
	}
	return accessToken, nil
}

// Authenticate resolves a bearer token to the current account. The
// returned user never carries a password hash.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (types.User, error) {
	if accessToken == "" {
		return types.User{}, apperr.Unauthorized("access token not found")
	}
	userID, err := s.tokens.Verify(accessToken)
	if err != nil {
		return types.User{}, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.NotFound("user not found")
		}
		return types.User{}, err
	}
	user.PasswordHash = ""
	return user, nil
}

// ChangePasswordInput carries a password change request.
type ChangePasswordInput struct {
	Password         string `json:"password"`
	NewPassword      string `json:"newPassword"`
	NewPasswordMatch string `json:"newPasswordMatch"`
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, in ChangePasswordInput) error {
	if in.Password == "" || in.NewPassword == "" {
		return apperr.Validation("password", "current and new password are required")
	}
	if in.NewPassword != in.NewPasswordMatch {
		return apperr.Validation("newPasswordMatch", "new passwords do not match")
	}
	if !validation.ValidPassword(in.NewPassword) {
		return apperr.Validation("newPassword", validation.PasswordRule)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return mapStoreError(err, "user not found")
	}
	if !user.HasPassword() {
		return apperr.Validation("password", "password sign-in is not enabled for this account")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return apperr.Validation("password", "current password is incorrect")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), s.bcryptCost)
	if err != nil {
		return apperr.Internal("failed to change password", err)
	}
	user.PasswordHash = string(hashed)
	if _, err := s.users.Update(ctx, user); err != nil {
		return mapStoreError(err, "user not found")
	}
	return nil
}

// SweepExpiredSessions deletes every session expired at the current time.
func (s *AuthService) SweepExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.now().UTC())
}
