package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/carlog/carlog/internal/cache"
)

// AuthLimiter checks per-IP throttles for auth actions.
type AuthLimiter interface {
	CheckAuthRateLimit(ctx context.Context, action, ip string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter AuthLimiter
	Enabled bool
	// PerMinute is the sustained rate, Burst the bucket capacity.
	PerMinute int
	Burst     int
}

// RateLimitAuth returns middleware that throttles credential submissions
// (POST only) per client IP. action names the bucket, e.g. "login".
// Redis failures fail open.
func RateLimitAuth(cfg RateLimitConfig, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)

			result, err := cfg.Limiter.CheckAuthRateLimit(r.Context(), action, ip, cfg.PerMinute, cfg.Burst)
			if err != nil {
				cfg.Logger.Error("auth rate limit check failed",
					slog.String("error", err.Error()),
					slog.String("action", action),
				)
			}
			if result == nil || result.Allowed {
				if result != nil {
					setRateLimitHeaders(w, cfg.PerMinute, result.Remaining, result.ResetAt)
				}
				next.ServeHTTP(w, r)
				return
			}

			cfg.Logger.Warn("rate limit exceeded",
				slog.String("type", action),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			setRateLimitHeaders(w, cfg.PerMinute, result.Remaining, result.ResetAt)
			writeRateLimitError(w, result.RetryAfter)
		})
	}
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	seconds := int(retryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	http.Error(w, "Too many attempts. Please try again in "+strconv.Itoa(seconds)+" seconds.", http.StatusTooManyRequests)
}

// getClientIP returns the client IP without the port.
// chi's RealIP middleware has already applied X-Forwarded-For / X-Real-IP.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
