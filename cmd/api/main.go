// Package main is the entrypoint for the Carlog web server.
//
// Usage:
//
//	api              run the server
//	api migrate up   apply pending migrations and exit
//	api migrate down roll back every migration and exit
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/carlog/carlog/internal/auth"
	"github.com/carlog/carlog/internal/cache"
	"github.com/carlog/carlog/internal/config"
	"github.com/carlog/carlog/internal/handler"
	"github.com/carlog/carlog/internal/metrics"
	"github.com/carlog/carlog/internal/middleware"
	"github.com/carlog/carlog/internal/repository"
	"github.com/carlog/carlog/internal/server"
	"github.com/carlog/carlog/internal/service"
	"github.com/carlog/carlog/internal/session"
	"github.com/carlog/carlog/internal/view"
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

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg, os.Args[2:]); err != nil {
			logger.Error("migration failed", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", sanitizeError(err, cfg.DatabaseURL, cfg.RedisURL)))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return err
	}
	logger.Info("connected to database")

	if cfg.AutoMigrate {
		if err := repository.Migrate(cfg.DatabaseURL); err != nil {
			repo.Close()
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		repo.Close()
		return err
	}
	logger.Info("connected to Redis")

	// Sessions
	signer, err := auth.NewTokenSigner(cfg.SecretKey, cfg.SessionTTL)
	if err != nil {
		repo.Close()
		_ = cacheClient.Close()
		return fmt.Errorf("session signer: %w", err)
	}

	renderer, err := view.New()
	if err != nil {
		repo.Close()
		_ = cacheClient.Close()
		return fmt.Errorf("load templates: %w", err)
	}

	// The session error page needs the page handler, which needs the manager.
	var pages *handler.Handler
	sessions := session.NewManager(cacheClient, signer, session.Config{
		CookieName: cfg.SessionCookieName,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.SessionCookieSecure(),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			pages.ServerError(w, r, err)
		},
	}, logger)
	pages = handler.New(renderer, sessions, logger)

	// Initialize services
	metricsRecorder := metrics.NewInMemory()
	accountService := service.NewAccountService(repo, metricsRecorder)
	maintenanceService := service.NewMaintenanceService(repo, metricsRecorder)

	// Setup router
	router := server.NewRouter(server.RouterConfig{
		Logger:             logger,
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		CSRFAllowedOrigins: cfg.GetCSRFAllowedOrigins(),
		RateLimit: middleware.RateLimitConfig{
			Logger:    logger,
			Limiter:   cacheClient,
			Enabled:   cfg.RateLimitAuthEnabled,
			PerMinute: cfg.RateLimitAuthPerMinute,
			Burst:     cfg.RateLimitAuthBurst,
		},
		Sessions:    sessions,
		Users:       repo,
		Pages:       pages,
		Auth:        handler.NewAuthHandler(pages, accountService),
		Maintenance: handler.NewMaintenanceHandler(pages, maintenanceService),
		Health:      handler.NewHealthHandler(repo, cacheClient, logger),
		Metrics:     handler.NewMetricsHandler(metricsRecorder),
	})

	// Create and run server
	srv := server.New(router, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// LIFO: Redis closes before PostgreSQL
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		slog.Int("port", cfg.AppPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("env", cfg.AppEnv),
	)

	return srv.Run(ctx)
}

// runMigrate handles "migrate up" and "migrate down".
func runMigrate(cfg *config.Config, args []string) error {
	direction := "up"
	if len(args) > 0 {
		direction = args[0]
	}

	switch direction {
	case "up":
		return repository.Migrate(cfg.DatabaseURL)
	case "down":
		return repository.MigrateDown(cfg.DatabaseURL)
	default:
		return fmt.Errorf("unknown migrate direction %q (want up or down)", direction)
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
	switch strings.ToLower(level) {
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
