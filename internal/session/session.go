// Package session manages server-side sessions behind a signed cookie.
//
// The cookie carries only a signed session ID. Session records (user ID and
// pending flash messages) live in the Store. Anonymous sessions are kept in
// memory until something needs persisting, so plain page views never touch
// the store.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/carlog/carlog/internal/auth"
	"github.com/carlog/carlog/internal/cache"
	"github.com/carlog/carlog/internal/model"
)

// Store persists session records.
type Store interface {
	GetSession(ctx context.Context, id string) (*model.Session, error)
	SaveSession(ctx context.Context, sess *model.Session, ttl time.Duration) error
	DeleteSession(ctx context.Context, id string) error
}

// Config holds cookie settings.
type Config struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	// ErrorHandler renders infrastructure failures during Load.
	// Defaults to a plain 500 response.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

// Manager loads, mutates and persists sessions.
type Manager struct {
	store  Store
	signer *auth.TokenSigner
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// ErrNoSession is returned when a request did not pass through Load.
var ErrNoSession = errors.New("no session in request context")

type contextKey struct{}

// NewManager creates a Manager.
func NewManager(store Store, signer *auth.TokenSigner, cfg Config, logger *slog.Logger) *Manager {
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
	}
	return &Manager{
		store:  store,
		signer: signer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// FromContext returns the session loaded for the request, or nil.
func FromContext(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(contextKey{}).(*model.Session)
	return sess
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *model.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// Load is middleware that attaches the request's session to its context.
// A missing, forged or expired cookie yields a fresh anonymous session.
func (m *Manager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := m.load(r)
		if err != nil {
			m.logger.Error("session load failed",
				slog.String("error", err.Error()),
				slog.String("path", r.URL.Path),
			)
			m.cfg.ErrorHandler(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

func (m *Manager) load(r *http.Request) (*model.Session, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return m.newSession(), nil
	}

	id, err := m.signer.Parse(cookie.Value)
	if err != nil {
		m.logger.Debug("discarding invalid session cookie", slog.String("path", r.URL.Path))
		return m.newSession(), nil
	}

	sess, err := m.store.GetSession(r.Context(), id)
	if err != nil {
		if errors.Is(err, cache.ErrSessionNotFound) {
			return m.newSession(), nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (m *Manager) newSession() *model.Session {
	return &model.Session{
		ID:        ulid.Make().String(),
		CreatedAt: m.now().UTC(),
	}
}

// Start binds userID to a fresh session. The previous session record is
// destroyed and a new ID issued; pending flashes carry over.
func (m *Manager) Start(w http.ResponseWriter, r *http.Request, userID int64) error {
	sess := FromContext(r.Context())
	if sess == nil {
		return ErrNoSession
	}

	if err := m.store.DeleteSession(r.Context(), sess.ID); err != nil {
		return fmt.Errorf("delete previous session: %w", err)
	}

	fresh := m.newSession()
	sess.ID = fresh.ID
	sess.CreatedAt = fresh.CreatedAt
	sess.UserID = userID

	return m.save(w, r, sess)
}

// End destroys the session and expires the cookie. The request continues
// with a new anonymous session.
func (m *Manager) End(w http.ResponseWriter, r *http.Request) error {
	sess := FromContext(r.Context())
	if sess == nil {
		return ErrNoSession
	}

	if err := m.store.DeleteSession(r.Context(), sess.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	*sess = *m.newSession()

	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearUser detaches the user from the session, keeping its flashes.
func (m *Manager) ClearUser(w http.ResponseWriter, r *http.Request) error {
	sess := FromContext(r.Context())
	if sess == nil {
		return ErrNoSession
	}
	sess.UserID = 0
	return m.save(w, r, sess)
}

// AddFlash queues a message for the next rendered page.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, category, message string) error {
	sess := FromContext(r.Context())
	if sess == nil {
		return ErrNoSession
	}
	sess.Flashes = append(sess.Flashes, model.Flash{Category: category, Message: message})
	return m.save(w, r, sess)
}

// PopFlashes returns and clears the pending flash messages.
func (m *Manager) PopFlashes(w http.ResponseWriter, r *http.Request) ([]model.Flash, error) {
	sess := FromContext(r.Context())
	if sess == nil || len(sess.Flashes) == 0 {
		return nil, nil
	}

	flashes := sess.Flashes
	sess.Flashes = nil
	if err := m.save(w, r, sess); err != nil {
		return flashes, err
	}
	return flashes, nil
}

// save persists sess and refreshes the cookie.
// Anonymous sessions with nothing to carry are not stored.
func (m *Manager) save(w http.ResponseWriter, r *http.Request, sess *model.Session) error {
	if !sess.IsAuthenticated() && len(sess.Flashes) == 0 {
		if err := m.store.DeleteSession(r.Context(), sess.ID); err != nil {
			return fmt.Errorf("delete empty session: %w", err)
		}
		return nil
	}

	if err := m.store.SaveSession(r.Context(), sess, m.cfg.TTL); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	token, err := m.signer.Sign(sess.ID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.cfg.TTL.Seconds()),
		Expires:  m.now().Add(m.cfg.TTL),
		HttpOnly: true,
		Secure:   m.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
