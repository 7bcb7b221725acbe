package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env        string
	ServerPort int
	LogLevel   string
	Database   DatabaseConfig
	Auth       AuthConfig
	Media      MediaConfig
	Minio      MinioConfig
	GCS        GCSConfig
	MQ         MQConfig
	RabbitMQ   RabbitMQConfig
	PubSub     PubSubConfig
	Redis      RedisConfig
	RateLimit  RateLimitConfig
	OAuth      OAuthConfig
	CORS       CORSConfig
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	UseSSL   bool
}

// DSN returns the connection string, preferring an explicit DATABASE_URL.
func (d DatabaseConfig) DSN() string {
	if strings.TrimSpace(d.URL) != "" {
		return d.URL
	}
	if strings.TrimSpace(d.Host) == "" {
		return ""
	}

	sslmode := "disable"
	if d.UseSSL {
		sslmode = "require"
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		User:   url.UserPassword(d.User, d.Password),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

type AuthConfig struct {
	// JWTSecret signs access tokens. It must never be logged.
	JWTSecret            string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	SessionSweepInterval time.Duration
	BcryptCost           int
}

type MediaConfig struct {
	Driver         string
	Folder         string
	PublicURL      string
	UploadTimeout  time.Duration
	MaxUploadBytes int64
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type GCSConfig struct {
	Bucket          string
	ProjectID       string
	CredentialsFile string
}

type MQConfig struct {
	Driver string
	// MaxAttempts bounds redelivery of a message whose handler keeps failing.
	MaxAttempts int
}

type RabbitMQConfig struct {
	URL             string
	QueueDurable    bool
	QueueAutoDelete bool
	PrefetchCount   int
}

type PubSubConfig struct {
	ProjectID          string
	CredentialsFile    string
	SubscriptionSuffix string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type OAuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string
	CallbackURL        string
	FrontendURL        string
	StateSecret        string
}

// GoogleEnabled reports whether Google sign-in is configured.
func (o OAuthConfig) GoogleEnabled() bool {
	return strings.TrimSpace(o.GoogleClientID) != "" && strings.TrimSpace(o.GoogleClientSecret) != ""
}

type CORSConfig struct {
	AllowedOrigins []string
}

func LoadConfig() Config {
	env := strings.ToLower(getEnv("ENV", EnvDevelopment))
	if env == "dev" {
		env = EnvDevelopment
	}
	if env == EnvDevelopment {
		_ = godotenv.Load()
	}

	dbConfig := DatabaseConfig{
		URL:      getEnv("DATABASE_URL", ""),
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnvInt("DB_PORT", 5432),
		User:     getEnv("DB_USER", "pixelvault"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "pixelvault"),
		UseSSL:   getEnvBool("DB_USE_SSL", false),
	}

	return Config{
		Env:        env,
		ServerPort: getEnvInt("SERVER_PORT", 8080),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Database:   dbConfig,
		Auth: AuthConfig{
			JWTSecret:            strings.TrimSpace(getEnv("JWT_SECRET", "")),
			AccessTokenTTL:       getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL:      getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
			SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", time.Hour),
			BcryptCost:           getEnvInt("BCRYPT_COST", 12),
		},
		Media: MediaConfig{
			Driver:         strings.ToLower(getEnv("MEDIA_DRIVER", "minio")),
			Folder:         getEnv("MEDIA_FOLDER", "photos"),
			PublicURL:      getEnv("MEDIA_PUBLIC_URL", ""),
			UploadTimeout:  getEnvDuration("MEDIA_UPLOAD_TIMEOUT", 90*time.Second),
			MaxUploadBytes: int64(getEnvInt("MEDIA_MAX_UPLOAD_BYTES", 10<<20)),
		},
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "pixelvault"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		GCS: GCSConfig{
			Bucket:          getEnv("GCS_BUCKET", ""),
			ProjectID:       getEnv("GCS_PROJECT_ID", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
		},
		MQ: MQConfig{
			Driver:      strings.ToLower(getEnv("MQ_DRIVER", "")),
			MaxAttempts: getEnvInt("MQ_MAX_ATTEMPTS", 5),
		},
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", ""),
			QueueDurable:    getEnvBool("RABBITMQ_QUEUE_DURABLE", true),
			QueueAutoDelete: getEnvBool("RABBITMQ_QUEUE_AUTO_DELETE", false),
			PrefetchCount:   getEnvInt("RABBITMQ_PREFETCH", 10),
		},
		PubSub: PubSubConfig{
			ProjectID:          getEnv("PUBSUB_PROJECT_ID", ""),
			CredentialsFile:    getEnv("PUBSUB_CREDENTIALS_FILE", ""),
			SubscriptionSuffix: getEnv("PUBSUB_SUBSCRIPTION_SUFFIX", "-sub"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 20),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 5),
		},
		OAuth: OAuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			CallbackURL:        getEnv("OAUTH_CALLBACK_URL", "http://localhost:8080/auth/google/callback"),
			FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:5173"),
			StateSecret:        getEnv("OAUTH_STATE_SECRET", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
	}
}

// Validate reports settings the server cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Database.DSN() == "" {
		errs = append(errs, errors.New("DATABASE_URL (or DB_HOST) is required"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must be positive"))
	}
	if c.Auth.SessionSweepInterval <= 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_INTERVAL must be positive"))
	}
	if c.Auth.BcryptCost < 10 {
		errs = append(errs, errors.New("BCRYPT_COST must be at least 10"))
	}
	if c.OAuth.GoogleEnabled() && strings.TrimSpace(c.OAuth.StateSecret) == "" {
		errs = append(errs, errors.New("OAUTH_STATE_SECRET is required when Google sign-in is enabled"))
	}
	return errors.Join(errs...)
}

// IsProduction controls cookie security attributes and error detail.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		var value int
		if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
			return defaultValue
		}
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	switch strings.ToLower(strings.TrimSpace(valueStr)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
