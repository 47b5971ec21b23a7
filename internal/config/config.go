// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
// An optional .env file in the working directory is read first for local development.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// MinSecretKeyLen is the minimum length of SECRET_KEY in bytes.
const MinSecretKeyLen = 16

// ErrWeakSecretKey is returned when SECRET_KEY is shorter than MinSecretKeyLen.
var ErrWeakSecretKey = errors.New("SECRET_KEY must be at least 16 bytes")

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`

	// Session store (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Secret used to sign session cookies
	SecretKey string `env:"SECRET_KEY,required"`

	// Public URL of the app, used as the default trusted origin
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Sessions
	SessionTTL        time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionCookieName string        `env:"SESSION_COOKIE_NAME" envDefault:"session"`

	// Login/register throttling
	RateLimitAuthEnabled   bool `env:"RATE_LIMIT_AUTH_ENABLED" envDefault:"true"`
	RateLimitAuthPerMinute int  `env:"RATE_LIMIT_AUTH_PER_MINUTE" envDefault:"10"`
	RateLimitAuthBurst     int  `env:"RATE_LIMIT_AUTH_BURST" envDefault:"5"`

	// Comma-separated list of origins allowed to submit forms.
	// Empty means the origin of BaseURL.
	CSRFAllowedOrigins string `env:"CSRF_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// SessionCookieSecure reports whether the session cookie needs the Secure flag.
func (c *Config) SessionCookieSecure() bool {
	return c.IsProduction() || strings.HasPrefix(c.BaseURL, "https://")
}

// GetCSRFAllowedOrigins returns the origins trusted for state-changing requests.
// Falls back to the scheme and host of BaseURL.
func (c *Config) GetCSRFAllowedOrigins() []string {
	origins := splitList(c.CSRFAllowedOrigins)
	if len(origins) > 0 {
		return origins
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return []string{u.Scheme + "://" + u.Host}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimRight(strings.TrimSpace(p), "/")
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Validate checks constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if len(c.SecretKey) < MinSecretKeyLen {
		return ErrWeakSecretKey
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.SessionCookieName == "" {
		return errors.New("SESSION_COOKIE_NAME must not be empty")
	}
	if c.RateLimitAuthEnabled && c.RateLimitAuthPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_AUTH_PER_MINUTE must be positive, got %d", c.RateLimitAuthPerMinute)
	}
	return nil
}

// Load reads an optional .env file, parses environment variables and returns a Config.
// Variables already set in the environment take precedence over .env.
// Returns an error if required variables are missing or invalid.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is like Load but reads the dotenv file at path.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err == nil {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
