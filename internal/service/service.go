// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"

	"github.com/carlog/carlog/internal/model"
)

// Service errors.
var (
	ErrMissingField       = errors.New("all fields are required")
	ErrEmailExists        = errors.New("email already exists")
	ErrUsernameExists     = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingServiceType = errors.New("service type is required")
	ErrInvalidCost        = errors.New("cost must be a finite number")
	ErrFieldTooLong       = errors.New("field exceeds maximum length")
)

// Field length limits, in bytes.
const (
	MaxUsernameLength    = 64
	MaxEmailLength       = 254
	MaxPasswordLength    = 1024
	MaxServiceTypeLength = 128
	MaxNotesLength       = 4096
)

// UserStore is the persistence the account service needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

// RecordStore is the persistence the maintenance service needs.
type RecordStore interface {
	CreateMaintenanceRecord(ctx context.Context, rec *model.MaintenanceRecord) error
	ListMaintenanceRecordsByOwner(ctx context.Context, userID int64) ([]*model.MaintenanceRecord, error)
}
