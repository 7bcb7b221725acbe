package services

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/pixelvault/apiserver/internal/apperr"
	"github.com/pixelvault/apiserver/internal/services/servicetest"
	"github.com/pixelvault/apiserver/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type authFixture struct {
	auth     *AuthService
	users    *servicetest.Users
	sessions *servicetest.Sessions
	clock    *fakeClock
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	clock := newFakeClock()
	users := servicetest.NewUsers()
	sessions := servicetest.NewSessions()
	tokens := NewTokenIssuer("test-secret", 15*time.Minute)
	auth := NewAuthService(users, sessions, tokens, zerolog.Nop(),
		WithBcryptCost(minBcryptCost),
		WithRefreshTTL(7*24*time.Hour),
		WithClock(clock.Now),
	)
	return authFixture{auth: auth, users: users, sessions: sessions, clock: clock}
}

func aliceSignUp() SignUpInput {
	return SignUpInput{
		Username:  "alice",
		Password:  "Password1",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Lee",
	}
}

func requireKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected tagged error, got %v", err)
	require.Equal(t, kind, appErr.Kind, "message: %s", appErr.Message)
	return appErr
}

func testMediaCleanup(media *servicetest.Media, queue *servicetest.Publisher) *MediaCleanup {
	return NewMediaCleanup(media, queue, zerolog.Nop())
}

func testUser(users *servicetest.Users, username string) types.User {
	return users.Put(types.User{
		Username:    username,
		Email:       username + "@example.com",
		DisplayName: username,
	})
}
