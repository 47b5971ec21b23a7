package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/carlog/carlog/internal/handler/dto"
	"github.com/carlog/carlog/internal/middleware"
	"github.com/carlog/carlog/internal/model"
	"github.com/carlog/carlog/internal/service"
	"github.com/carlog/carlog/internal/view"
)

// Flash messages for the account pages.
const (
	msgMissingField   = "All fields are required."
	msgEmailExists    = "Email already exists!"
	msgUsernameExists = "Username already taken!"
	msgFieldTooLong   = "One of the fields is too long."
	msgAccountCreated = "Account created successfully!"
	msgLoginFailed    = "Login unsuccessful. Check your email and password."
)

// AccountService is the account logic the auth handlers need.
type AccountService interface {
	Register(ctx context.Context, input service.RegisterInput) (*model.User, error)
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
}

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	*Handler
	accounts AccountService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(base *Handler, accounts AccountService) *AuthHandler {
	return &AuthHandler{
		Handler:  base,
		accounts: accounts,
	}
}

// RegisterForm renders the registration form.
// GET /register
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, view.PageRegister, &view.Page{})
}

// Register creates an account.
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	form, err := dto.ParseRegisterForm(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	user, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		h.handleRegisterError(w, r, err)
		return
	}

	h.logger.Info("user registered",
		slog.Int64("user_id", user.ID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)
	h.flashRedirect(w, r, model.FlashSuccess, msgAccountCreated, "/login")
}

func (h *AuthHandler) handleRegisterError(w http.ResponseWriter, r *http.Request, err error) {
	var msg string
	switch {
	case errors.Is(err, service.ErrMissingField):
		msg = msgMissingField
	case errors.Is(err, service.ErrEmailExists):
		msg = msgEmailExists
	case errors.Is(err, service.ErrUsernameExists):
		msg = msgUsernameExists
	case errors.Is(err, service.ErrFieldTooLong):
		msg = msgFieldTooLong
	default:
		h.ServerError(w, r, err)
		return
	}
	h.flashRedirect(w, r, model.FlashDanger, msg, "/register")
}

// LoginForm renders the login form.
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, view.PageLogin, &view.Page{})
}

// Login checks credentials and starts a session.
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	form, err := dto.ParseLoginForm(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			h.ServerError(w, r, err)
			return
		}

		h.logger.Info("login failed",
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		page := &view.Page{Form: map[string]string{"email": form.Email}}
		h.render(w, r, http.StatusOK, view.PageLogin, page,
			model.Flash{Category: model.FlashDanger, Message: msgLoginFailed})
		return
	}

	if err := h.sessions.Start(w, r, user.ID); err != nil {
		h.ServerError(w, r, err)
		return
	}

	h.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout ends the session.
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(w, r); err != nil {
		h.ServerError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
