package jobmetrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, reg *prometheus.Registry) string {
	t.Helper()
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	require.NoError(t, metrics.Track("reconcile").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("reconcile").End(boom), boom)

	body := scrape(t, reg)
	require.Contains(t, body, `depot_jobs_total{job="reconcile",status="success"} 1`)
	require.Contains(t, body, `depot_jobs_total{job="reconcile",status="failure"} 1`)
	require.Contains(t, body, `depot_jobs_failures_total{job="reconcile"} 1`)
}

func TestInconsistencyGaugeIsOverwritten(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	metrics.SetInconsistencies("orphaned_scheduled", 3)
	metrics.SetInconsistencies("orphaned_scheduled", 1)
	metrics.SetInconsistencies("stale_roster", -2)
	metrics.AddPurged(4)
	metrics.AddPurged(0)

	body := scrape(t, reg)
	require.Contains(t, body, `depot_reconcile_inconsistencies{kind="orphaned_scheduled"} 1`)
	require.Contains(t, body, `depot_reconcile_inconsistencies{kind="stale_roster"} 0`)
	require.Contains(t, body, `depot_idempotency_keys_purged_total 4`)
}

func TestNilMetricsTrackerIsNoop(t *testing.T) {
	var metrics *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("reconcile").End(boom), boom)
	metrics.SetInconsistencies("x", 1)
	metrics.AddPurged(1)
}
