package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nferro/atelier/internal/auth/sso"
	"github.com/nferro/atelier/internal/config"
	"github.com/nferro/atelier/internal/database"
	"github.com/nferro/atelier/internal/generation"
	"github.com/nferro/atelier/internal/handlers"
	"github.com/nferro/atelier/internal/metrics"
	"github.com/nferro/atelier/internal/middleware"
	"github.com/nferro/atelier/internal/ratelimit"
	"github.com/nferro/atelier/internal/storage"
	s3storage "github.com/nferro/atelier/internal/storage/s3"
	"github.com/nferro/atelier/internal/utils"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("starting atelier",
		"port", cfg.Port,
		"bucket", cfg.StorageBucket,
		"image_model", cfg.ImageModel,
		"sso_enabled", cfg.SSOEnabled(),
	)

	// Initialize database
	db, err := database.Initialize(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("database initialized", "path", cfg.DBPath)

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// Initialize object storage
	store, err := s3storage.New(startupCtx, s3storage.Config{
		Bucket:               cfg.StorageBucket,
		Region:               cfg.StorageRegion,
		Endpoint:             cfg.StorageEndpoint,
		AccessKeyID:          cfg.StorageAccessKey,
		SecretAccessKey:      cfg.StorageSecretKey,
		PathStyle:            cfg.StoragePathStyle,
		PublicBaseURL:        cfg.PublicBaseURL,
		ThumbnailSize:        cfg.ThumbnailSize,
		VideoThumbnailOffset: cfg.VideoThumbnailOffset,
	})
	if err != nil {
		slog.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	// Initialize the generation provider
	provider, err := generation.NewOpenAIClient(cfg.OpenAIKey, cfg.ChatModel, cfg.ImageModel)
	if err != nil {
		slog.Error("failed to initialize generation provider", "error", err)
		os.Exit(1)
	}

	// Rate limiter, one rule per expensive endpoint
	limiter, err := ratelimit.New(db, map[string]ratelimit.Rule{
		"generate": {Max: cfg.GenerateLimit, Window: cfg.GenerateWindow},
		"upload":   {Max: cfg.UploadLimit, Window: cfg.UploadWindow},
		"enhance":  {Max: cfg.EnhanceLimit, Window: cfg.EnhanceWindow},
	})
	if err != nil {
		slog.Error("failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}

	// Optional SSO provider
	var ssoProvider *sso.Provider
	if cfg.SSOEnabled() {
		ssoProvider, err = sso.NewProvider(startupCtx, db, sso.Config{
			IssuerURL:    cfg.OIDCIssuerURL,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		})
		if err != nil {
			slog.Error("failed to initialize SSO provider", "error", err)
			os.Exit(1)
		}
		slog.Info("SSO provider initialized", "issuer", cfg.OIDCIssuerURL)
	}

	startTime := time.Now()

	// Setup HTTP router
	mux := http.NewServeMux()

	userAuth := middleware.UserAuth(db)
	optionalAuth := middleware.OptionalUserAuth(db)

	rateLimited := func(endpoint string, h http.Handler) http.Handler {
		return userAuth(middleware.RateLimit(limiter, endpoint)(h))
	}

	mux.Handle("/api/generate", rateLimited("generate", handlers.GenerateHandler(db, cfg, provider, store)))
	mux.Handle("/api/upload", rateLimited("upload", handlers.UploadHandler(db, cfg, store)))
	mux.Handle("/api/enhance-prompt", rateLimited("enhance", handlers.EnhanceHandler(cfg, provider)))

	mux.Handle("/api/images", userAuth(handlers.HistoryHandler(db)))
	mux.HandleFunc("/api/feed", handlers.FeedHandler(db))
	mux.Handle("/api/images/bulk/visibility", userAuth(handlers.VisibilityBulkHandler(db)))
	mux.Handle("/api/images/bulk/delete", userAuth(handlers.DeleteImagesBulkHandler(db, store)))
	mux.Handle("/api/images/", optionalAuth(imageItemRouter(db, store)))

	mux.Handle("/api/prompts", userAuth(promptCollectionRouter(db)))
	mux.Handle("/api/prompts/", userAuth(handlers.DeletePromptHandler(db)))

	mux.Handle("/api/references", userAuth(handlers.ListReferencesHandler(db)))
	mux.Handle("/api/references/", userAuth(handlers.DeleteReferenceHandler(db, store)))

	mux.Handle("/api/limits", userAuth(handlers.LimitsHandler(limiter)))

	mux.HandleFunc("/api/auth/login", handlers.LoginHandler(db, cfg))
	mux.HandleFunc("/api/auth/logout", handlers.LogoutHandler(db, cfg))
	mux.Handle("/api/auth/user", userAuth(handlers.CurrentUserHandler()))
	if ssoProvider != nil {
		mux.HandleFunc("/api/auth/sso/login", handlers.SSOLoginHandler(ssoProvider))
		mux.HandleFunc("/api/auth/sso/callback", handlers.SSOCallbackHandler(db, cfg, ssoProvider))
	}

	mux.HandleFunc("/health", handlers.HealthHandler(db, store, startTime))
	mux.Handle("/metrics", handlers.MetricsHandler(db))

	// Wrap with middleware (order: Recovery -> Logging -> Metrics -> Security -> handlers)
	handler := middleware.RecoveryMiddleware(
		middleware.LoggingMiddleware(
			metrics.Middleware(
				middleware.SecurityHeadersMiddleware(mux),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.GenerateTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background cleanup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go utils.StartCleanupWorker(ctx, db, limiter, time.Duration(cfg.CleanupIntervalMinutes)*time.Minute)

	// Start HTTP server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "address", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("shutdown signal received", "signal", sig)

		cancel()

		// Give outstanding requests 10 seconds to complete
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
			if err := server.Close(); err != nil {
				slog.Error("server close failed", "error", err)
			}
			os.Exit(1)
		}

		slog.Info("server shutdown complete")
	}
}

// imageItemRouter dispatches /api/images/{id} and
// /api/images/{id}/visibility by method and suffix.
func imageItemRouter(db *sql.DB, store storage.Backend) http.Handler {
	get := handlers.GetImageHandler(db)
	visibility := handlers.VisibilityHandler(db)
	del := handlers.DeleteImageHandler(db, store)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/visibility"):
			visibility(w, r)
		case r.Method == http.MethodDelete:
			del(w, r)
		default:
			get(w, r)
		}
	})
}

// promptCollectionRouter dispatches /api/prompts by method.
func promptCollectionRouter(db *sql.DB) http.Handler {
	list := handlers.ListPromptsHandler(db)
	save := handlers.SavePromptHandler(db)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			save(w, r)
			return
		}
		list(w, r)
	})
}
