// Package memstore provides in-memory implementations of the persistence
// and session stores for tests.
package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/carlog/carlog/internal/cache"
	"github.com/carlog/carlog/internal/model"
	"github.com/carlog/carlog/internal/repository"
)

// Repository mirrors repository.Repository for users and maintenance records.
// Unique email/username and owner existence are enforced like the database does.
type Repository struct {
	mu      sync.Mutex
	users   []*model.User
	records []*model.MaintenanceRecord
	nextID  int64

	// Err, when set, is returned by every method.
	Err error
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{}
}

// CreateUser stores a copy of user and assigns its ID.
func (r *Repository) CreateUser(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}

	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
		if u.Username == user.Username {
			return repository.ErrUsernameExists
		}
	}

	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now().UTC()
	cp := *user
	r.users = append(r.users, &cp)
	return nil
}

// GetUserByID returns the user with id.
func (r *Repository) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	for _, u := range r.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// GetUserByEmail returns the user with email.
func (r *Repository) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// EmailExists reports whether email is registered.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

// CreateMaintenanceRecord stores a copy of rec and assigns its ID.
func (r *Repository) CreateMaintenanceRecord(_ context.Context, rec *model.MaintenanceRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}

	owned := false
	for _, u := range r.users {
		if u.ID == rec.UserID {
			owned = true
			break
		}
	}
	if !owned {
		return repository.ErrUserNotFound
	}

	r.nextID++
	rec.ID = r.nextID
	rec.Date = model.TruncateToDate(rec.Date)
	rec.CreatedAt = time.Now().UTC()
	cp := *rec
	r.records = append(r.records, &cp)
	return nil
}

// ListMaintenanceRecordsByOwner returns userID's records, newest date first,
// ties broken by descending ID.
func (r *Repository) ListMaintenanceRecordsByOwner(_ context.Context, userID int64) ([]*model.MaintenanceRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}

	var out []*model.MaintenanceRecord
	for _, rec := range r.records {
		if rec.UserID == userID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Ping always succeeds unless Err is set.
func (r *Repository) Ping(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Err
}

// UserCount returns the number of stored users.
func (r *Repository) UserCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// RecordCount returns the number of stored records across all users.
func (r *Repository) RecordCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// SessionStore mirrors the Redis session methods of cache.Cache.
// TTLs are recorded but not enforced.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	ttls     map[string]time.Duration

	// Err, when set, is returned by every method.
	Err error
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]model.Session),
		ttls:     make(map[string]time.Duration),
	}
}

// GetSession returns a copy of the stored session.
func (s *SessionStore) GetSession(_ context.Context, id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	sess, ok := s.sessions[id]
	if !ok {
		return nil, cache.ErrSessionNotFound
	}
	sess.Flashes = append([]model.Flash(nil), sess.Flashes...)
	return &sess, nil
}

// SaveSession stores a copy of sess.
func (s *SessionStore) SaveSession(_ context.Context, sess *model.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	cp := *sess
	cp.Flashes = append([]model.Flash(nil), sess.Flashes...)
	s.sessions[sess.ID] = cp
	s.ttls[sess.ID] = ttl
	return nil
}

// DeleteSession removes a session.
func (s *SessionStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	delete(s.sessions, id)
	delete(s.ttls, id)
	return nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// TTL returns the TTL last used to save session id.
func (s *SessionStore) TTL(id string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttls[id]
}
