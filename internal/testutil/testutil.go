// Package testutil holds helpers shared by tests: environment gating,
// database/Redis reset and data factories.
package testutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/carlog/carlog/internal/auth"
	"github.com/carlog/carlog/internal/model"
	"github.com/carlog/carlog/migrations"
)

// TestPassword is the plaintext password of users built by NewTestUser.
const TestPassword = "pw1"

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema drops and recreates every table using the embedded migrations.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if err := DropSchema(ctx, pool); err != nil {
		return err
	}
	return applyMigrations(ctx, pool, ".up.sql", false)
}

// DropSchema runs every down migration, newest first.
func DropSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return applyMigrations(ctx, pool, ".down.sql", true)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool, suffix string, reverse bool) error {
	names, err := fs.Glob(migrations.FS, "*"+suffix)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)
	if reverse {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}

	for _, name := range names {
		sql, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ============================================================================
// Test Data Factories
// ============================================================================

var (
	hashOnce   sync.Once
	cachedHash string
)

// TestPasswordHash returns the Argon2id hash of TestPassword.
// It is computed once per test binary.
func TestPasswordHash(t testing.TB) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := auth.HashPassword(TestPassword)
		if err != nil {
			panic(fmt.Sprintf("hash test password: %v", err))
		}
		cachedHash = h
	})
	return cachedHash
}

// NewTestUser creates an unsaved user whose password is TestPassword.
func NewTestUser(t testing.TB, username, email string) *model.User {
	t.Helper()
	return &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: TestPasswordHash(t),
	}
}

// NewTestRecord creates an unsaved maintenance record for userID.
func NewTestRecord(t testing.TB, userID int64, serviceType string, date time.Time) *model.MaintenanceRecord {
	t.Helper()
	return &model.MaintenanceRecord{
		UserID:      userID,
		Date:        model.TruncateToDate(date),
		ServiceType: serviceType,
		Cost:        49.99,
	}
}

// UniqueEmail generates a unique email address for tests.
func UniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d@example.test", strings.ToLower(prefix), time.Now().UnixNano())
}
