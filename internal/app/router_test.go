package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depot-ops/depot-ops/internal/audit"
	audithttp "github.com/depot-ops/depot-ops/internal/audit/http"
	"github.com/depot-ops/depot-ops/internal/observability"
	"github.com/depot-ops/depot-ops/internal/rbac"
	"github.com/depot-ops/depot-ops/internal/shared"
	"github.com/depot-ops/depot-ops/jobs"
	"github.com/depot-ops/depot-ops/report"
)

func TestRouterMountsOperationalEndpoints(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	handler := NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppRequestTimeout: time.Second, RateLimitPerMinute: 100},
		SessionManager: shared.NewSessionManager(client, "depot_session", time.Hour, false),
		CSRFManager:    shared.NewCSRFManager("secret"),
		Metrics:        observability.NewMetrics(),
		ReportHandler:  report.NewHandler(report.NewClient("", 0), logger),
		AuditHandler:   audithttp.NewHandler(logger, audit.NewService(nil), rbac.Middleware{}),
		JobHandler:     jobs.NewHandler(nil, nil, rbac.Middleware{}, logger),
	})

	get := func(path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		return rr
	}

	rr := get("/healthz")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	rr = get("/jobs/health")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"queue":"default"`)

	assert.Equal(t, http.StatusServiceUnavailable, get("/reports/ping").Code)
	assert.Equal(t, http.StatusNotFound, get("/delivery/trips").Code)
	assert.Equal(t, http.StatusUnauthorized, get("/audit").Code)

	rr = get("/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "depot_http_requests_total"))
}
