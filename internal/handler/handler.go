// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/carlog/carlog/internal/auth"
	"github.com/carlog/carlog/internal/middleware"
	"github.com/carlog/carlog/internal/model"
	"github.com/carlog/carlog/internal/session"
	"github.com/carlog/carlog/internal/view"
)

// Handler holds what every page handler needs: templates, sessions and a
// logger. Feature handlers embed it.
type Handler struct {
	renderer *view.Renderer
	sessions *session.Manager
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a new Handler instance.
func New(renderer *view.Renderer, sessions *session.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		renderer: renderer,
		sessions: sessions,
		logger:   logger,
		now:      time.Now,
	}
}

// Home renders the landing page.
// GET /
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, view.PageHome, &view.Page{})
}

// Dashboard greets the logged-in user.
// GET /dashboard
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, view.PageDashboard, &view.Page{})
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, "The page you requested does not exist.")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusMethodNotAllowed, "That action is not supported here.")
}

// ServerError renders the generic 500 page. It matches the error callback
// signature used by the session and identity middleware.
func (h *Handler) ServerError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		h.logger.Error("request failed",
			slog.String("error", err.Error()),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
	}
	h.renderError(w, r, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}

// Panic renders the 500 page after the recoverer has logged a panic.
func (h *Handler) Panic(w http.ResponseWriter, r *http.Request) {
	h.ServerError(w, r, nil)
}

// badRequest renders a 400 page for malformed form input.
func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Info("bad request",
		slog.String("error", err.Error()),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)
	h.renderError(w, r, http.StatusBadRequest, "The submitted form was invalid: "+err.Error()+".")
}

// flashRedirect queues a flash and answers with 303 See Other.
func (h *Handler) flashRedirect(w http.ResponseWriter, r *http.Request, category, message, location string) {
	if err := h.sessions.AddFlash(w, r, category, message); err != nil {
		h.ServerError(w, r, err)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// render fills the user and pending flashes into page and writes it.
// extra flashes are shown on this page only and never stored.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, page *view.Page, extra ...model.Flash) {
	page.User = auth.UserFromContext(r.Context())

	flashes, err := h.sessions.PopFlashes(w, r)
	if err != nil {
		// The flashes are still shown; they may reappear on the next page.
		h.logger.Warn("failed to clear flashes",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
	}
	page.Flashes = append(flashes, extra...)

	if err := h.renderer.Render(w, status, name, page); err != nil {
		h.logger.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// renderError writes the error page without touching the session, so it is
// safe to call when the session store itself has failed.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	page := &view.Page{
		User:    auth.UserFromContext(r.Context()),
		Status:  status,
		Message: message,
	}
	if err := h.renderer.Render(w, status, view.PageError, page); err != nil {
		h.logger.Error("failed to render error page",
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		http.Error(w, http.StatusText(status), status)
	}
}

func (h *Handler) today() string {
	return h.now().UTC().Format(model.DateLayout)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
