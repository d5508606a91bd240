// Package main is the entrypoint for the PagePulse API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/pagepulse/pagepulse/internal/cache"
	"github.com/pagepulse/pagepulse/internal/config"
	"github.com/pagepulse/pagepulse/internal/handler"
	"github.com/pagepulse/pagepulse/internal/ingest"
	"github.com/pagepulse/pagepulse/internal/metrics"
	"github.com/pagepulse/pagepulse/internal/middleware"
	"github.com/pagepulse/pagepulse/internal/repository"
	"github.com/pagepulse/pagepulse/internal/server"
)

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Metrics recorder backing the /metrics endpoint
	metricsRecorder := metrics.NewInMemory()

	// Session ingest pipeline
	publisher := ingest.NewPublisher(cacheClient.Client(), logger, metricsRecorder)

	// Initialize handlers
	h := handler.New()
	healthHandler := handler.NewHealthHandler(repo, cacheClient)
	sessionHandler := handler.NewSessionHandler(publisher, logger)
	fileHandler := handler.NewFileHandler(repo, cacheClient, metricsRecorder, logger, cfg.BaseURL)
	analyticsHandler := handler.NewAnalyticsHandler(repo, cacheClient, metricsRecorder, logger)
	performanceHandler := handler.NewPerformanceHandler(repo, cacheClient, metricsRecorder, logger)
	contactHandler := handler.NewContactHandler(repo, logger)
	dashboardHandler := handler.NewDashboardHandler(repo, cacheClient, metricsRecorder, logger)
	apiKeyHandler := handler.NewAPIKeyHandler(logger, repo)
	adminHandler := handler.NewAdminHandler(repo, repo, logger)
	metricsHandler := handler.NewMetricsHandler(metricsRecorder)

	// Setup router
	r := setupRouter(routerDeps{
		base:        h,
		health:      healthHandler,
		sessions:    sessionHandler,
		files:       fileHandler,
		analytics:   analyticsHandler,
		performance: performanceHandler,
		contacts:    contactHandler,
		dashboard:   dashboardHandler,
		apiKeys:     apiKeyHandler,
		admin:       adminHandler,
		metrics:     metricsHandler,
		repo:        repo,
		cache:       cacheClient,
		cfg:         cfg,
		logger:      logger,
	})

	// Create server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Run the ingest worker alongside the HTTP server
	if cfg.IngestWorkerEnabled {
		worker := ingest.NewWorker(cacheClient.Client(), repo, logger, ingest.NewConsumerID(), metricsRecorder)
		worker.SetFileCache(cacheClient)
		worker.SetBatchSize(cfg.IngestBatchSize)
		worker.SetBlockTimeout(cfg.IngestBlockTimeout)
		worker.SetClaimInterval(cfg.IngestClaimInterval)
		worker.SetClaimIdle(cfg.IngestClaimIdle)

		go func() {
			if err := worker.Run(ctx); err != nil && err != context.Canceled {
				logger.Error("ingest worker exited", "error", err)
			}
		}()

		srv.OnShutdown("ingest worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps bundles everything setupRouter needs.
type routerDeps struct {
	base        *handler.Handler
	health      *handler.HealthHandler
	sessions    *handler.SessionHandler
	files       *handler.FileHandler
	analytics   *handler.AnalyticsHandler
	performance *handler.PerformanceHandler
	contacts    *handler.ContactHandler
	dashboard   *handler.DashboardHandler
	apiKeys     *handler.APIKeyHandler
	admin       *handler.AdminHandler
	metrics     *handler.MetricsHandler
	repo        *repository.Repository
	cache       *cache.Cache
	cfg         *config.Config
	logger      *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(deps routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(deps.logger))
	r.Use(middleware.Recoverer(deps.logger))
	r.Use(middleware.MaxBodySize(deps.cfg.MaxRequestBodySize))

	securityCfg := middleware.DefaultSecurityConfig()
	securityCfg.IsDevelopment = deps.cfg.IsDevelopment()
	r.Use(middleware.Security(securityCfg))

	corsCfg := middleware.DefaultCORSConfig()
	if origins := deps.cfg.GetCORSAllowedOrigins(); len(origins) > 0 {
		corsCfg.AllowedOrigins = origins
	}
	r.Use(middleware.CORS(corsCfg))

	// Health endpoints (no auth required)
	r.Get("/healthz", deps.health.Healthz)
	r.Get("/readyz", deps.health.Readyz)
	r.Get("/metrics", deps.metrics.Metrics)

	// Root info endpoint
	r.Get("/", deps.base.Hello)

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger:     deps.logger,
		Repository: deps.repo,
		Cache:      deps.cache,
	}

	// Rate limit middleware configuration
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:       deps.logger,
		Cache:        deps.cache,
		APIEnabled:   deps.cfg.RateLimitAPIEnabled,
		TrackEnabled: deps.cfg.RateLimitTrackEnabled,
		TrackRPS:     deps.cfg.RateLimitTrackRPS,
		TrackBurst:   deps.cfg.RateLimitTrackBurst,
	}

	// Public tracking endpoint: IP rate limited, no API key. Viewer pages
	// beacon here directly.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitTrack(rateLimitCfg))
		r.Post("/track/sessions", deps.sessions.TrackSession)
		r.Post("/track/sessions/{sessionID}", deps.sessions.TrackSessionUpdate)
	})

	// API v1 routes (require authentication)
	r.Route("/api/v1", func(r chi.Router) {
		// Apply auth and rate limit middleware to all API routes
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimitAPI(rateLimitCfg))

		// File management and per-file analytics
		r.Route("/files", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", deps.files.ListFiles)
			r.With(middleware.RequireRead()).Get("/{id}", deps.files.GetFile)
			r.With(middleware.RequireRead()).Get("/{id}/analytics", deps.analytics.GetFileAnalytics)
			r.With(middleware.RequireAdmin()).Post("/", deps.files.CreateFile)
			r.With(middleware.RequireAdmin()).Patch("/{id}", deps.files.UpdateFile)
		})

		// Server-to-server session ingestion, for backends that proxy
		// viewer telemetry instead of beaconing from the page.
		r.With(middleware.RequireTrack()).Post("/track/sessions", deps.sessions.TrackSession)

		// Track-site link performance
		r.With(middleware.RequireRead()).Get("/links/{id}/performance", deps.performance.GetLinkPerformance)

		// Contact intelligence
		r.Route("/contacts", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", deps.contacts.ListContacts)
			r.With(middleware.RequireRead()).Get("/{email}", deps.contacts.GetContact)
		})

		// Owner-wide dashboard
		r.With(middleware.RequireRead()).Get("/dashboard", deps.dashboard.GetDashboard)

		// API key management (requires admin scope for mutations)
		r.Route("/api-keys", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", deps.apiKeys.ListAPIKeys)
			r.With(middleware.RequireAdmin()).Post("/", deps.apiKeys.CreateAPIKey)
			r.With(middleware.RequireAdmin()).Delete("/{key_id}", deps.apiKeys.RevokeAPIKey)
			r.With(middleware.RequireAdmin()).Post("/{key_id}/rotate", deps.apiKeys.RotateAPIKey)
		})

		// Admin debugging endpoints
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin())
			r.Get("/files", deps.admin.LookupFiles)
			r.Get("/api-keys", deps.admin.ListAPIKeysByOwner)
			r.Get("/stats", deps.admin.Stats)
		})
	})

	// 404 and 405 handlers
	r.NotFound(deps.base.NotFound)
	r.MethodNotAllowed(deps.base.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
