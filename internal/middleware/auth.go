package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/carlog/carlog/internal/auth"
	"github.com/carlog/carlog/internal/model"
	"github.com/carlog/carlog/internal/repository"
	"github.com/carlog/carlog/internal/session"
)

// LoginPath is where unauthenticated visitors of guarded pages are sent.
const LoginPath = "/login"

// LoginRequiredMessage is flashed when a guarded page redirects to login.
const LoginRequiredMessage = "Please log in to access this page."

// UserLookup loads users by ID.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// IdentityConfig holds dependencies for the identity middleware.
type IdentityConfig struct {
	Logger   *slog.Logger
	Users    UserLookup
	Sessions *session.Manager
	// OnError renders a 500 page for store failures.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

// Identity resolves the user bound to the request's session and stores it in
// the request context. It must run after session.Manager.Load.
//
// A session naming a user that no longer exists is treated as anonymous and
// the stale user ID is cleared.
func Identity(cfg IdentityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.FromContext(r.Context())
			if !sess.IsAuthenticated() {
				next.ServeHTTP(w, r)
				return
			}

			user, err := cfg.Users.GetUserByID(r.Context(), sess.UserID)
			if err != nil {
				if !errors.Is(err, repository.ErrUserNotFound) {
					cfg.Logger.Error("identity lookup failed",
						slog.String("error", err.Error()),
						slog.Int64("user_id", sess.UserID),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					cfg.OnError(w, r, err)
					return
				}

				cfg.Logger.Warn("session references missing user",
					slog.Int64("user_id", sess.UserID),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				if err := cfg.Sessions.ClearUser(w, r); err != nil {
					cfg.Logger.Error("failed to clear stale session user",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth returns middleware that only lets authenticated users through.
// Anyone else is redirected to the login page with a flash message and the
// wrapped handler never runs.
func RequireAuth(sessions *session.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.UserFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			logger.Info("unauthenticated access to guarded page",
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			if err := sessions.AddFlash(w, r, model.FlashInfo, LoginRequiredMessage); err != nil {
				logger.Error("failed to store login flash",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
			}
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		})
	}
}
