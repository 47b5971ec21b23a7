package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carlog/carlog/internal/auth"
	"github.com/carlog/carlog/internal/metrics"
	"github.com/carlog/carlog/internal/model"
	"github.com/carlog/carlog/internal/repository"
	"github.com/carlog/carlog/internal/testutil"
)

// MockUserStore is a testify mock for UserStore.
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*model.User)
	return user, args.Error(1)
}

func (m *MockUserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func TestRegister_Success(t *testing.T) {
	store := new(MockUserStore)
	recorder := metrics.NewInMemory()
	svc := NewAccountService(store, recorder)
	ctx := context.Background()

	store.On("EmailExists", ctx, "a@x.com").Return(false, nil)
	store.On("CreateUser", ctx, mock.MatchedBy(func(u *model.User) bool {
		return u.Username == "alice" && u.Email == "a@x.com" && strings.HasPrefix(u.PasswordHash, "$argon2id$")
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*model.User).ID = 1
	}).Return(nil)

	user, err := svc.Register(ctx, RegisterInput{Username: "  alice ", Email: " a@x.com", Password: "pw1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
	assert.NotContains(t, user.PasswordHash, "pw1")

	ok, err := auth.VerifyPassword("pw1", user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	snap := recorder.Snapshot()
	assert.Equal(t, uint64(1), snap.UsersRegistered)
	assert.Equal(t, uint64(1), snap.PasswordHashCount)
	store.AssertExpectations(t)
}

func TestRegister_MissingFields(t *testing.T) {
	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"no username", RegisterInput{Email: "a@x.com", Password: "pw1"}},
		{"blank username", RegisterInput{Username: "   ", Email: "a@x.com", Password: "pw1"}},
		{"no email", RegisterInput{Username: "alice", Password: "pw1"}},
		{"no password", RegisterInput{Username: "alice", Email: "a@x.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockUserStore)
			svc := NewAccountService(store, nil)

			_, err := svc.Register(context.Background(), tt.input)
			assert.ErrorIs(t, err, ErrMissingField)
			store.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
		})
	}
}

func TestRegister_TooLong(t *testing.T) {
	store := new(MockUserStore)
	svc := NewAccountService(store, nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Username: strings.Repeat("a", MaxUsernameLength+1),
		Email:    "a@x.com",
		Password: "pw1",
	})
	assert.ErrorIs(t, err, ErrFieldTooLong)
	store.AssertNotCalled(t, "EmailExists", mock.Anything, mock.Anything)
}

func TestRegister_DuplicateEmailPrecheck(t *testing.T) {
	store := new(MockUserStore)
	recorder := metrics.NewInMemory()
	svc := NewAccountService(store, recorder)
	ctx := context.Background()

	store.On("EmailExists", ctx, "a@x.com").Return(true, nil)

	_, err := svc.Register(ctx, RegisterInput{Username: "bob", Email: "a@x.com", Password: "pw2"})
	assert.ErrorIs(t, err, ErrEmailExists)
	store.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	assert.Equal(t, uint64(0), recorder.Snapshot().PasswordHashCount, "duplicate email should skip hashing")
	assert.Equal(t, uint64(1), recorder.Snapshot().RegistrationsRejected[metrics.ReasonEmailExists])
}

func TestRegister_ConstraintConflicts(t *testing.T) {
	tests := []struct {
		name    string
		repoErr error
		wantErr error
	}{
		{"email race", repository.ErrEmailExists, ErrEmailExists},
		{"username taken", repository.ErrUsernameExists, ErrUsernameExists},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockUserStore)
			svc := NewAccountService(store, nil)
			ctx := context.Background()

			store.On("EmailExists", ctx, "c@x.com").Return(false, nil)
			store.On("CreateUser", ctx, mock.Anything).Return(tt.repoErr)

			_, err := svc.Register(ctx, RegisterInput{Username: "carol", Email: "c@x.com", Password: "pw"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegister_StoreError(t *testing.T) {
	store := new(MockUserStore)
	svc := NewAccountService(store, nil)
	ctx := context.Background()
	dbErr := errors.New("connection refused")

	store.On("EmailExists", ctx, "a@x.com").Return(false, dbErr)

	_, err := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.com", Password: "pw1"})
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrEmailExists)
}

func TestAuthenticate(t *testing.T) {
	alice := testutil.NewTestUser(t, "alice", "a@x.com")
	alice.ID = 1

	tests := []struct {
		name     string
		email    string
		password string
		setup    func(*MockUserStore)
		wantErr  error
	}{
		{
			name:     "valid credentials",
			email:    "a@x.com",
			password: testutil.TestPassword,
			setup: func(s *MockUserStore) {
				s.On("GetUserByEmail", mock.Anything, "a@x.com").Return(alice, nil)
			},
		},
		{
			name:     "wrong password",
			email:    "a@x.com",
			password: "wrong",
			setup: func(s *MockUserStore) {
				s.On("GetUserByEmail", mock.Anything, "a@x.com").Return(alice, nil)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:     "unknown email",
			email:    "nobody@x.com",
			password: testutil.TestPassword,
			setup: func(s *MockUserStore) {
				s.On("GetUserByEmail", mock.Anything, "nobody@x.com").Return(nil, repository.ErrUserNotFound)
			},
			wantErr: ErrInvalidCredentials,
		},
		{
			name:     "empty password",
			email:    "a@x.com",
			password: "",
			setup:    func(s *MockUserStore) {},
			wantErr:  ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockUserStore)
			tt.setup(store)
			recorder := metrics.NewInMemory()
			svc := NewAccountService(store, recorder)

			user, err := svc.Authenticate(context.Background(), tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, user)
				assert.Equal(t, uint64(1), recorder.Snapshot().LoginsFailed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, alice.ID, user.ID)
			assert.Equal(t, uint64(1), recorder.Snapshot().LoginsSucceeded)
			store.AssertExpectations(t)
		})
	}
}

func TestAuthenticate_StoreError(t *testing.T) {
	store := new(MockUserStore)
	svc := NewAccountService(store, nil)
	dbErr := errors.New("timeout")

	store.On("GetUserByEmail", mock.Anything, "a@x.com").Return(nil, dbErr)

	_, err := svc.Authenticate(context.Background(), "a@x.com", "pw1")
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}
