package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// CSRFConfig holds configuration for CSRF protection middleware.
type CSRFConfig struct {
	Logger *slog.Logger
	// AllowedOrigins lists the scheme://host values allowed to submit forms.
	AllowedOrigins []string
}

// CSRF returns middleware that validates Origin/Referer headers on
// state-changing requests. Session cookies are sent automatically by the
// browser, so every form POST must come from one of our own pages.
func CSRF(cfg CSRFConfig) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[normalizeOrigin(origin)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			source := r.Header.Get("Origin")
			reason := "invalid_origin"
			if source == "" {
				source = extractOrigin(r.Header.Get("Referer"))
				reason = "invalid_referer"
			}
			if source == "" {
				reason = "missing_origin"
			}

			if source != "" && allowed[normalizeOrigin(source)] {
				next.ServeHTTP(w, r)
				return
			}

			cfg.Logger.Warn("csrf validation failed",
				slog.String("reason", reason),
				slog.String("origin", source),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.String("request_id", GetRequestID(r.Context())),
			)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func normalizeOrigin(origin string) string {
	return strings.TrimSuffix(strings.ToLower(origin), "/")
}

// extractOrigin returns scheme://host of rawURL, or "" if it has neither.
func extractOrigin(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	return parsed.Scheme + "://" + parsed.Host
}
