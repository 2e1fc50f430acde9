package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/study-hours/internal/application/command"
	"github.com/alem-hub/study-hours/internal/application/query"
	"github.com/alem-hub/study-hours/internal/domain/student"
	"github.com/alem-hub/study-hours/internal/interface/http/handlers"
)

// serve runs a prepared request through the full middleware chain.
func (ts *testServer) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestRecoverPanics(t *testing.T) {
	ts := newTestServer(t, query.VisitorPolicyError, nil)
	h := handlers.Chain(ts.srv.middleware()...)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "internal_error", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.NotEmpty(t, env.RequestID)
}

func TestRecoverPanics_AbortHandlerPassesThrough(t *testing.T) {
	ts := newTestServer(t, query.VisitorPolicyError, nil)
	h := ts.srv.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	rec := httptest.NewRecorder()
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Empty(t, rec.Body.String())
}

func TestBodyLimit(t *testing.T) {
	ts := newTestServer(t, query.VisitorPolicyError, func(c *Config) {
		c.MaxBodyBytes = 64
	})
	body := `{"display_name":"` + strings.Repeat("a", 128) + `","category":"visitor"}`

	// Declared Content-Length is rejected before the handler runs.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/students", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := ts.serve(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload_too_large", decodeEnvelope(t, rec).Error.Code)

	// Unknown length is cut off while decoding.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/students", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = -1
	rec = ts.serve(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload_too_large", decodeEnvelope(t, rec).Error.Code)

	// Small bodies pass.
	rec, _ = ts.do(t, http.MethodPost, "/api/v1/students", `{"display_name":"D","category":"visitor"}`, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCORS_AllowedOrigins(t *testing.T) {
	ts := newTestServer(t, query.VisitorPolicyError, func(c *Config) {
		c.AllowedOrigins = []string{"https://app.example"}
	})
	target := "/api/v1/students/ft-1/required-hours"

	rec, _ := ts.do(t, http.MethodGet, target, "", http.Header{"Origin": {"https://app.example"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))

	rec, _ = ts.do(t, http.MethodGet, target, "", http.Header{"Origin": {"https://evil.example"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/students", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		return ts.serve(req)
	}

	rec = preflight("https://app.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")

	rec = preflight("https://evil.example")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestCORS_Disabled(t *testing.T) {
	ts := newTestServer(t, query.VisitorPolicyError, func(c *Config) {
		c.EnableCORS = false
	})

	rec, _ := ts.do(t, http.MethodGet, "/api/v1/stats", "", http.Header{"Origin": {"https://app.example"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t, query.VisitorPolicyError, nil)

	for _, target := range []string{"/health", "/api/v1/students/nobody/required-hours"} {
		rec, _ := ts.do(t, http.MethodGet, target, "", nil)
		h := rec.Header()
		assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"), target)
		assert.Equal(t, "DENY", h.Get("X-Frame-Options"), target)
		assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"), target)
		assert.Equal(t, "no-store", h.Get("Cache-Control"), target)
		assert.Contains(t, h.Get("Content-Security-Policy"), "default-src 'none'", target)
	}
}

func TestRateLimit_RetryAfter(t *testing.T) {
	ts := newTestServer(t, query.VisitorPolicyError, func(c *Config) {
		c.RateLimitPerMinute = 1
	})
	target := "/api/v1/students/ft-1/required-hours"

	rec, _ := ts.do(t, http.MethodGet, target, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))

	rec, env := ts.do(t, http.MethodGet, target, "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limit_exceeded", env.Error.Code)

	secs, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, secs, 1)
	assert.LessOrEqual(t, secs, 60)

	// Another client still has its budget.
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "198.51.100.1:4000"
	assert.Equal(t, http.StatusOK, ts.serve(req).Code)
}

func TestHealth_DegradedStillServes(t *testing.T) {
	ts := newTestServer(t, query.VisitorPolicyError, nil)
	hc := handlers.NewCompositeHealthChecker("test")
	hc.AddCheck("postgres", func(context.Context) error { return nil })
	hc.AddOptionalCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	ts.srv.deps.HealthChecker = hc

	rec, env := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, handlers.StatusDegraded, status.Status)
	assert.False(t, status.Checks["redis"].Healthy)

	hc.AddCheck("postgres", func(context.Context) error { return errors.New("timeout") })
	rec, env = ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, handlers.StatusDown, status.Status)
}

// failingCache accepts nothing, like a cache behind an open breaker.
type failingCache struct{}

var errCacheDown = errors.New("circuit breaker is open")

func (failingCache) Get(context.Context, student.StudentID) (*student.Enrollment, error) {
	return nil, errCacheDown
}
func (failingCache) Set(context.Context, *student.Enrollment, time.Duration) error { return errCacheDown }
func (failingCache) Add(context.Context, *student.Enrollment, time.Duration) error { return errCacheDown }
func (failingCache) Delete(context.Context, student.StudentID) error               { return errCacheDown }

func TestChangeCategory_StaleCacheAnswers503(t *testing.T) {
	ts := newTestServer(t, query.VisitorPolicyError, nil)
	ts.srv.deps.ChangeCategory = command.NewChangeCategoryHandler(ts.repo, failingCache{}, 0, nil)

	rec, env := ts.do(t, http.MethodPut, "/api/v1/students/vs-1/category", `{"category":"full_time"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "cache_unavailable", env.Error.Code)
	assert.NotContains(t, rec.Body.String(), errCacheDown.Error())
}
