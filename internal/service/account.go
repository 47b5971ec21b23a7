package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/carlog/carlog/internal/auth"
	"github.com/carlog/carlog/internal/metrics"
	"github.com/carlog/carlog/internal/model"
	"github.com/carlog/carlog/internal/repository"
)

// AccountService handles registration and credential checks.
type AccountService struct {
	users   UserStore
	metrics metrics.Recorder
}

// NewAccountService creates a new AccountService.
func NewAccountService(users UserStore, recorder metrics.Recorder) *AccountService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &AccountService{
		users:   users,
		metrics: recorder,
	}
}

// RegisterInput defines input for creating an account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates a new user with a hashed password.
//
// Username and email are trimmed; the password is kept as typed. The email is
// checked before hashing so the common duplicate case skips the hash cost;
// the store's unique constraints settle concurrent registrations.
func (s *AccountService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)

	if username == "" || email == "" || input.Password == "" {
		s.metrics.IncRegistrationRejected(metrics.ReasonMissingField)
		return nil, ErrMissingField
	}
	if len(username) > MaxUsernameLength || len(email) > MaxEmailLength || len(input.Password) > MaxPasswordLength {
		return nil, ErrFieldTooLong
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		s.metrics.IncRegistrationRejected(metrics.ReasonEmailExists)
		return nil, ErrEmailExists
	}

	start := time.Now()
	hash, err := auth.HashPassword(input.Password)
	s.metrics.ObservePasswordHashDuration(time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			s.metrics.IncRegistrationRejected(metrics.ReasonEmailExists)
			return nil, ErrEmailExists
		case errors.Is(err, repository.ErrUsernameExists):
			s.metrics.IncRegistrationRejected(metrics.ReasonUsernameExists)
			return nil, ErrUsernameExists
		default:
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
	}

	s.metrics.IncUserRegistered()
	return user, nil
}

// Authenticate returns the user whose email and password match.
//
// Unknown emails and wrong passwords both return ErrInvalidCredentials, and
// both pay for one password verification.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" || len(password) > MaxPasswordLength {
		auth.DummyVerify(password)
		s.metrics.IncLoginFailed()
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.DummyVerify(password)
			s.metrics.IncLoginFailed()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password for user %d: %w", user.ID, err)
	}
	if !ok {
		s.metrics.IncLoginFailed()
		return nil, ErrInvalidCredentials
	}

	s.metrics.IncLoginSucceeded()
	return user, nil
}
