package server

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlog/carlog/internal/auth"
	"github.com/carlog/carlog/internal/cache"
	"github.com/carlog/carlog/internal/handler"
	"github.com/carlog/carlog/internal/metrics"
	"github.com/carlog/carlog/internal/middleware"
	"github.com/carlog/carlog/internal/service"
	"github.com/carlog/carlog/internal/session"
	"github.com/carlog/carlog/internal/testutil"
	"github.com/carlog/carlog/internal/testutil/memstore"
	"github.com/carlog/carlog/internal/view"
)

const testOrigin = "http://carlog.test"

type denyLimiter struct{}

func (denyLimiter) CheckAuthRateLimit(context.Context, string, string, int, int) (*cache.RateLimitResult, error) {
	return &cache.RateLimitResult{Allowed: false, RetryAfter: 30 * time.Second}, nil
}

type testApp struct {
	server   *httptest.Server
	repo     *memstore.Repository
	sessions *memstore.SessionStore
	recorder *metrics.InMemoryRecorder
}

func newTestApp(t *testing.T, limiter middleware.AuthLimiter) *testApp {
	t.Helper()

	logger := discardLogger()
	renderer, err := view.New()
	require.NoError(t, err)
	signer, err := auth.NewTokenSigner("router-test-secret-00001", time.Hour)
	require.NoError(t, err)

	repo := memstore.NewRepository()
	store := memstore.NewSessionStore()
	recorder := metrics.NewInMemory()

	var pages *handler.Handler
	sessions := session.NewManager(store, signer, session.Config{
		CookieName: "session",
		TTL:        time.Hour,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			pages.ServerError(w, r, err)
		},
	}, logger)
	pages = handler.New(renderer, sessions, logger)

	router := NewRouter(RouterConfig{
		Logger:             logger,
		IsDevelopment:      true,
		MaxRequestBodySize: 1 << 20,
		CSRFAllowedOrigins: []string{testOrigin},
		RateLimit: middleware.RateLimitConfig{
			Logger:    logger,
			Limiter:   limiter,
			Enabled:   limiter != nil,
			PerMinute: 10,
			Burst:     5,
		},
		Sessions:    sessions,
		Users:       repo,
		Pages:       pages,
		Auth:        handler.NewAuthHandler(pages, service.NewAccountService(repo, recorder)),
		Maintenance: handler.NewMaintenanceHandler(pages, service.NewMaintenanceService(repo, recorder)),
		Health:      handler.NewHealthHandler(repo, nil, logger),
		Metrics:     handler.NewMetricsHandler(recorder),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testApp{server: srv, repo: repo, sessions: store, recorder: recorder}
}

// browser returns a client that keeps cookies and follows redirects.
func (a *testApp) browser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar, Timeout: 10 * time.Second}
}

// noFollow returns a client that stops at the first response.
func (a *testApp) noFollow(t *testing.T) *http.Client {
	c := a.browser(t)
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

func get(t *testing.T, c *http.Client, target string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(target)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func post(t *testing.T, c *http.Client, target string, form url.Values) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", testOrigin)

	resp, err := c.Do(req)
	require.NoError(t, err)
	return resp, readBody(t, resp)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRouter_FullScenario(t *testing.T) {
	app := newTestApp(t, nil)
	base := app.server.URL
	c := app.browser(t)

	// register lands on the login page with a success flash
	resp, body := post(t, c, base+"/register", url.Values{
		"username": {"alice"},
		"email":    {"a@x.com"},
		"password": {"pw1"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, "Account created successfully!")

	// login lands on the dashboard
	resp, body = post(t, c, base+"/login", url.Values{"email": {"a@x.com"}, "password": {"pw1"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Request.URL.Path)
	assert.Contains(t, body, "Welcome, alice!")

	// add one record
	resp, body = post(t, c, base+"/add_service", url.Values{
		"service_type": {"Oil Change"},
		"cost":         {"49.99"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Request.URL.Path)
	assert.Contains(t, body, "Maintenance record added!")

	resp, body = get(t, c, base+"/view_services")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, strings.Count(body, "Oil Change"))
	assert.Contains(t, body, "$49.99")
	assert.Equal(t, 1, app.repo.RecordCount())

	// logout sends us home and guards close again
	resp, _ = get(t, c, base+"/logout")
	assert.Equal(t, "/", resp.Request.URL.Path)

	resp, body = get(t, c, base+"/view_services")
	assert.Equal(t, "/login", resp.Request.URL.Path)
	assert.Contains(t, body, middleware.LoginRequiredMessage)
}

func TestRouter_DuplicateEmail(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.browser(t)
	form := url.Values{"username": {"alice"}, "email": {"a@x.com"}, "password": {"pw1"}}

	post(t, c, app.server.URL+"/register", form)
	form.Set("username", "alice2")
	resp, body := post(t, c, app.server.URL+"/register", form)

	assert.Equal(t, "/register", resp.Request.URL.Path)
	assert.Contains(t, body, "Email already exists!")
	assert.Equal(t, 1, app.repo.UserCount())
}

func TestRouter_GuardRedirects(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.noFollow(t)

	for _, path := range []string{"/dashboard", "/add_service", "/view_services", "/logout"} {
		resp, _ := get(t, c, app.server.URL+path)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}

	resp, _ := post(t, c, app.server.URL+"/add_service", url.Values{"service_type": {"Oil"}, "cost": {"1"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, 0, app.repo.RecordCount())
}

func TestRouter_SessionCookieAttributes(t *testing.T) {
	app := newTestApp(t, nil)
	require.NoError(t, app.repo.CreateUser(context.Background(), testutil.NewTestUser(t, "alice", "a@x.com")))
	c := app.noFollow(t)

	resp, _ := post(t, c, app.server.URL+"/login", url.Values{"email": {"a@x.com"}, "password": {"pw1"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	var cookie *http.Cookie
	for _, ck := range resp.Cookies() {
		if ck.Name == "session" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 3600, cookie.MaxAge)
}

func TestRouter_CSRFRejectsForeignOrigin(t *testing.T) {
	app := newTestApp(t, nil)

	req, err := http.NewRequest(http.MethodPost, app.server.URL+"/register", strings.NewReader("username=a&email=b&password=c"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Origin", "https://evil.example")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, app.repo.UserCount())
}

func TestRouter_RateLimitedLogin(t *testing.T) {
	app := newTestApp(t, denyLimiter{})
	c := app.noFollow(t)

	resp, _ := post(t, c, app.server.URL+"/login", url.Values{"email": {"a@x.com"}, "password": {"pw1"}})

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "30", resp.Header.Get("Retry-After"))

	// the form itself is never throttled
	resp, _ = get(t, c, app.server.URL+"/login")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_NotFoundAndMethodNotAllowed(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.noFollow(t)

	resp, body := get(t, c, app.server.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "404")

	resp, _ = post(t, c, app.server.URL+"/dashboard", url.Values{})
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	app := newTestApp(t, nil)
	c := app.noFollow(t)

	resp, body := get(t, c, app.server.URL+"/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	resp, _ = get(t, c, app.server.URL+"/readyz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	post(t, c, app.server.URL+"/register", url.Values{"username": {"a"}, "email": {"a@x.com"}, "password": {"pw1"}})

	resp, body = get(t, c, app.server.URL+"/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "carlog_users_registered_total 1")
	assert.Empty(t, resp.Cookies(), "operational endpoints never set cookies")
	assert.Equal(t, 1, app.sessions.Len(), "only the registration flash session is stored")
}

func TestRouter_SecurityHeaders(t *testing.T) {
	app := newTestApp(t, nil)

	resp, _ := get(t, app.noFollow(t), app.server.URL+"/")

	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, middleware.ContentSecurityPolicy, resp.Header.Get("Content-Security-Policy"))
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
}

func TestRouter_CostRoundTrip(t *testing.T) {
	app := newTestApp(t, nil)
	require.NoError(t, app.repo.CreateUser(context.Background(), testutil.NewTestUser(t, "alice", "a@x.com")))
	c := app.browser(t)
	post(t, c, app.server.URL+"/login", url.Values{"email": {"a@x.com"}, "password": {"pw1"}})

	for _, cost := range []string{"12.345", "0.125", "49.99"} {
		resp, _ := post(t, c, app.server.URL+"/add_service", url.Values{
			"service_type": {"Service " + cost},
			"cost":         {cost},
		})
		require.Equal(t, "/dashboard", resp.Request.URL.Path, cost)
	}
	post(t, c, app.server.URL+"/add_service", url.Values{"service_type": {"Wash"}, "cost": {"7.5"}})

	_, body := get(t, c, app.server.URL+"/view_services")
	assert.Contains(t, body, "$12.345")
	assert.NotContains(t, body, "$12.35<")
	assert.Contains(t, body, "$0.125")
	assert.Contains(t, body, "$49.99")
	assert.Contains(t, body, "$7.50")
}

func TestRouter_ErrorPagesKnowTheUser(t *testing.T) {
	app := newTestApp(t, nil)
	require.NoError(t, app.repo.CreateUser(context.Background(), testutil.NewTestUser(t, "alice", "a@x.com")))
	c := app.browser(t)
	post(t, c, app.server.URL+"/login", url.Values{"email": {"a@x.com"}, "password": {"pw1"}})

	resp, body := get(t, c, app.server.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, `href="/logout"`)
	assert.NotContains(t, body, `href="/register"`)

	resp, body = post(t, c, app.server.URL+"/dashboard", url.Values{})
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Contains(t, body, `href="/logout"`)

	// anonymous visitors still get the login links and no stored session
	before := app.sessions.Len()
	resp, body = get(t, app.noFollow(t), app.server.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, `href="/login"`)
	assert.Equal(t, before, app.sessions.Len())
}
