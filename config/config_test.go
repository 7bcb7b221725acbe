package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Database: DatabaseConfig{URL: "postgres://localhost/pixelvault"},
		Auth: AuthConfig{
			JWTSecret:            "secret",
			AccessTokenTTL:       15 * time.Minute,
			RefreshTokenTTL:      7 * 24 * time.Hour,
			SessionSweepInterval: time.Hour,
			BcryptCost:           12,
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, "JWT_SECRET"},
		{"missing database", func(c *Config) { c.Database = DatabaseConfig{} }, "DATABASE_URL"},
		{"weak bcrypt", func(c *Config) { c.Auth.BcryptCost = 4 }, "BCRYPT_COST"},
		{"zero refresh ttl", func(c *Config) { c.Auth.RefreshTokenTTL = 0 }, "REFRESH_TOKEN_TTL"},
		{"google without state secret", func(c *Config) {
			c.OAuth.GoogleClientID = "id"
			c.OAuth.GoogleClientSecret = "secret"
		}, "OAUTH_STATE_SECRET"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://explicit", DatabaseConfig{URL: "postgres://explicit", Host: "db"}.DSN())
	assert.Empty(t, DatabaseConfig{}.DSN())
	assert.Equal(t,
		"postgres://pv:p%40ss@db:5432/pixelvault?sslmode=require",
		DatabaseConfig{Host: "db", Port: 5432, User: "pv", Password: "p@ss", DBName: "pixelvault", UseSSL: true}.DSN(),
	)
}

func TestGoogleEnabled(t *testing.T) {
	assert.False(t, OAuthConfig{GoogleClientID: "id"}.GoogleEnabled())
	assert.True(t, OAuthConfig{GoogleClientID: "id", GoogleClientSecret: "s"}.GoogleEnabled())
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "  padded  ")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := LoadConfig()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "padded", cfg.Auth.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
