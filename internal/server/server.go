package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pixelvault/apiserver/config"
	"github.com/pixelvault/apiserver/internal/db"
	"github.com/pixelvault/apiserver/internal/handlers"
	"github.com/pixelvault/apiserver/internal/middleware"
	"github.com/pixelvault/apiserver/internal/mq"
	"github.com/pixelvault/apiserver/internal/services"
	"github.com/pixelvault/apiserver/internal/storage"
	"github.com/pixelvault/apiserver/internal/store"
)

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	db         *sql.DB
	queue      *mq.MQ
	redis      *redis.Client
	sweeper    *services.SessionSweeper
	logger     zerolog.Logger
}

// New connects every backing service and builds the router.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Server{db: dbConn, logger: logger}

	media, err := storage.Open(ctx, cfg)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open media storage: %w", err)
	}
	s.queue, err = mq.Open(ctx, cfg, logger)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("open message queue: %w", err)
	}

	limiter := middleware.Limiter(middleware.NewMemoryLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst))
	if cfg.Redis.Addr != "" {
		s.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = middleware.NewRedisLimiter(s.redis, cfg.RateLimit.RequestsPerMinute+cfg.RateLimit.Burst, time.Minute)
	}

	userRepo := store.NewUserRepository(dbConn)
	sessionRepo := store.NewSessionRepository(dbConn)
	permissionRepo := store.NewPermissionRepository(dbConn)
	imageRepo := store.NewImageRepository(dbConn)
	categoryRepo := store.NewCategoryRepository(dbConn)
	collectionRepo := store.NewCollectionRepository(dbConn)
	statsRepo := store.NewStatsRepository(dbConn)

	tokens := services.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	authService := services.NewAuthService(userRepo, sessionRepo, tokens, logger,
		services.WithRefreshTTL(cfg.Auth.RefreshTokenTTL),
		services.WithBcryptCost(cfg.Auth.BcryptCost),
	)
	authorizer := services.NewAuthorizer(permissionRepo)
	cleanup := services.NewMediaCleanup(media, s.queue, logger)
	userService := services.NewUserService(userRepo, media, cleanup, cfg.Media.UploadTimeout, logger)
	imageService := services.NewImageService(imageRepo, categoryRepo, media, cleanup, authorizer, cfg.Media.UploadTimeout, logger)
	categoryService := services.NewCategoryService(categoryRepo, imageRepo)
	collectionService := services.NewCollectionService(collectionRepo, imageRepo)
	roleService := services.NewRoleService(userRepo, permissionRepo, logger)
	adminService := services.NewAdminService(services.AdminDeps{
		Users:       userRepo,
		Images:      imageRepo,
		Sessions:    sessionRepo,
		Permissions: permissionRepo,
		Collections: collectionRepo,
		Stats:       statsRepo,
	}, cleanup, authorizer, logger)
	s.sweeper = services.NewSessionSweeper(authService, cfg.Auth.SessionSweepInterval, middleware.RecordSessionsSwept, logger)

	production := cfg.IsProduction()
	resp := handlers.Responder{Production: production}
	guard := handlers.NewGuard(authService, authorizer, resp)
	cookie := handlers.RefreshCookie{Production: production, TTL: cfg.Auth.RefreshTokenTTL}

	var oauth *handlers.OAuthHandler
	if cfg.OAuth.GoogleEnabled() {
		google := services.NewGoogleAuth(cfg.OAuth, userRepo, authService, logger)
		oauth = handlers.NewOAuthHandler(google,
			handlers.NewStateStore(cfg.OAuth.StateSecret, production),
			cookie,
			cfg.OAuth.FrontendURL,
		)
	}

	requestTimeout := 60 * time.Second
	if upload := cfg.Media.UploadTimeout + 10*time.Second; upload > requestTimeout {
		requestTimeout = upload
	}

	router := chi.NewRouter()
	router.Use(
		chimw.RequestID,
		chimw.RealIP,
		middleware.RequestLogger(logger),
		chimw.Recoverer,
		middleware.Metrics,
		middleware.CORS(cfg.CORS.AllowedOrigins),
		chimw.Timeout(requestTimeout),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, handlers.NewAuthHandler(authService, cookie, resp), middleware.RateLimit(limiter, "auth", resp.Fail))
		handlers.OAuthRouter(r, oauth)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, handlers.NewUserHandler(userService, authService, cfg.Media.MaxUploadBytes, resp), guard)
	})
	router.Route("/images", func(r chi.Router) {
		handlers.ImageRouter(r, handlers.NewImageHandler(imageService, cfg.Media.MaxUploadBytes, resp), guard)
	})
	router.Route("/categories", func(r chi.Router) {
		handlers.CategoryRouter(r, handlers.NewCategoryHandler(categoryService, resp), guard)
	})
	router.Route("/collections", func(r chi.Router) {
		handlers.CollectionRouter(r, handlers.NewCollectionHandler(collectionService, resp), guard)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r,
			handlers.NewAdminHandler(adminService, resp),
			handlers.NewRoleHandler(roleService, resp),
			guard,
		)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	// Uploads run under MEDIA_UPLOAD_TIMEOUT; the write timeout must outlast it.
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Start runs the session sweeper and the HTTP server. It returns nil once
// the server has been shut down.
func (s *Server) Start(ctx context.Context) error {
	s.sweeper.Start(ctx)
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then releases every resource.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.sweeper.Stop()
	s.close()
	return err
}

func (s *Server) close() {
	if s.queue != nil {
		if err := s.queue.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("close message queue")
		}
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}
