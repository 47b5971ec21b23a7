package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/carlog/carlog/internal/handler"
	"github.com/carlog/carlog/internal/middleware"
	"github.com/carlog/carlog/internal/session"
)

// RouterConfig wires handlers and middleware into the router.
type RouterConfig struct {
	Logger *slog.Logger

	IsDevelopment      bool
	MaxRequestBodySize int64
	CSRFAllowedOrigins []string
	RateLimit          middleware.RateLimitConfig

	Sessions *session.Manager
	Users    middleware.UserLookup

	Pages       *handler.Handler
	Auth        *handler.AuthHandler
	Maintenance *handler.MaintenanceHandler
	Health      *handler.HealthHandler
	// Metrics is optional; /metrics is not mounted when nil.
	Metrics *handler.MetricsHandler
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger, cfg.Pages.Panic))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment}))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
	r.Use(middleware.CSRF(middleware.CSRFConfig{
		Logger:         cfg.Logger,
		AllowedOrigins: cfg.CSRFAllowedOrigins,
	}))

	// Operational endpoints never load a session
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}

	identity := middleware.Identity(middleware.IdentityConfig{
		Logger:   cfg.Logger,
		Users:    cfg.Users,
		Sessions: cfg.Sessions,
		OnError:  cfg.Pages.ServerError,
	})

	r.Group(func(r chi.Router) {
		r.Use(cfg.Sessions.Load)
		r.Use(identity)

		r.Get("/", cfg.Pages.Home)

		r.Get("/register", cfg.Auth.RegisterForm)
		r.With(middleware.RateLimitAuth(cfg.RateLimit, "register")).Post("/register", cfg.Auth.Register)
		r.Get("/login", cfg.Auth.LoginForm)
		r.With(middleware.RateLimitAuth(cfg.RateLimit, "login")).Post("/login", cfg.Auth.Login)

		// Pages that need a logged-in user
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.Sessions, cfg.Logger))

			r.Get("/logout", cfg.Auth.Logout)
			r.Get("/dashboard", cfg.Pages.Dashboard)
			r.Get("/add_service", cfg.Maintenance.AddServiceForm)
			r.Post("/add_service", cfg.Maintenance.AddService)
			r.Get("/view_services", cfg.Maintenance.ViewServices)
		})
	})

	// Error pages resolve the visitor too, so the nav matches their login state
	withIdentity := func(h http.HandlerFunc) http.HandlerFunc {
		return cfg.Sessions.Load(identity(h)).ServeHTTP
	}
	r.NotFound(withIdentity(cfg.Pages.NotFound))
	r.MethodNotAllowed(withIdentity(cfg.Pages.MethodNotAllowed))

	return r
}
