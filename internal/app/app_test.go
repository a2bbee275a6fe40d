package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabdesk/fabdesk/internal/observability"
	"github.com/fabdesk/fabdesk/internal/rbac"
	"github.com/fabdesk/fabdesk/internal/shared"
	"github.com/fabdesk/fabdesk/jobs"
	_ "github.com/fabdesk/fabdesk/testing"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestRouter(t *testing.T, cfg *Config, readiness map[string]Pinger) (http.Handler, *shared.SessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := shared.NewSessionStore(client, "fabdesk_session", time.Hour)
	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		RBACMiddleware: rbac.Middleware{Sessions: sessions, Logger: logger},
		JobHandler:     jobs.NewHandler(nil, logger),
		Metrics:        observability.NewMetrics(),
		Readiness:      readiness,
	})
	return router, sessions
}

func testConfig() *Config {
	return &Config{AppEnv: "test", RateLimitPerMinute: 100, AppRequestTimeout: 5 * time.Second}
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestReadyzReportsFailingDependency(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), map[string]Pinger{
		"postgres": pingerFunc(func(context.Context) error { return nil }),
		"redis":    pingerFunc(func(context.Context) error { return errors.New("refused") }),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"postgres":"ok","redis":"unavailable"}`, rec.Body.String())
}

func TestAPIRequiresSession(t *testing.T) {
	router, sessions := newTestRouter(t, testConfig(), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	staff, err := sessions.Put(context.Background(), shared.Principal{UserID: "u-2", Business: shared.BusinessCNC, Role: shared.RoleStaff})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil)
	req.Header.Set("Authorization", "Bearer "+staff)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin, err := sessions.Put(context.Background(), shared.Principal{UserID: "u-1", Business: shared.BusinessCNC, Role: shared.RoleAdmin})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/jobs/health", nil)
	req.AddCookie(&http.Cookie{Name: "fabdesk_session", Value: admin})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	router, _ := newTestRouter(t, testConfig(), nil)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fabdesk_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestRateLimitReturnsJSON(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitPerMinute = 2
	router, _ := newTestRouter(t, cfg, nil)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		router.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, last.Body.String())
}

func TestLoadConfigDefaultsAndValidation(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
	assert.True(t, cfg.AllowNegativeStockAlerts)
	assert.Equal(t, "@every 1h", cfg.AnomalyScanCron)
	assert.False(t, cfg.IsProduction())

	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel(&Config{LogLevel: "DEBUG"}))
	assert.Equal(t, slog.LevelWarn, parseLevel(&Config{LogLevel: "warning"}))
	assert.Equal(t, slog.LevelInfo, parseLevel(nil))
}

func TestTestModeFromEnvironment(t *testing.T) {
	RefreshTestMode()
	assert.True(t, InTestMode())

	t.Setenv("FABDESK_TEST_MODE", "0")
	RefreshTestMode()
	assert.False(t, InTestMode())

	t.Setenv("FABDESK_TEST_MODE", "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
}
