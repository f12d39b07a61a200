package audithttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depot-ops/depot-ops/internal/audit"
	"github.com/depot-ops/depot-ops/internal/rbac"
	"github.com/depot-ops/depot-ops/internal/shared"
)

type stubService struct {
	last   audit.TimelineFilters
	result audit.Result
	rows   []audit.TimelineRow
	err    error
}

func (s *stubService) Timeline(ctx context.Context, filters audit.TimelineFilters) (audit.Result, error) {
	s.last = filters
	return s.result, s.err
}

func (s *stubService) Export(ctx context.Context, filters audit.TimelineFilters) ([]audit.TimelineRow, error) {
	s.last = filters
	return s.rows, s.err
}

func newRouter(svc *stubService) http.Handler {
	h := NewHandler(nil, svc, rbac.Middleware{})
	h.now = func() time.Time { return time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/audit", h.MountRoutes)
	return r
}

func serveAs(router http.Handler, actor *shared.Actor, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if actor != nil {
		req = req.WithContext(shared.ContextWithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

var (
	admin    = &shared.Actor{ID: 1, Role: shared.RoleAdmin, Branch: shared.AllBranches}
	finance  = &shared.Actor{ID: 2, Role: shared.RoleFinance, Branch: shared.AllBranches}
	operator = &shared.Actor{ID: 11, Role: shared.RoleOperator, Branch: "Kemang"}
)

func TestTimelineDefaultsAndFilters(t *testing.T) {
	svc := &stubService{result: audit.Result{
		Rows:   []audit.TimelineRow{{ActorID: 11, Action: "trip.create", Entity: "trip", EntityID: "t1"}},
		Paging: audit.PagingInfo{Page: 1, PageSize: 20},
	}}
	router := newRouter(svc)

	rec := serveAs(router, admin, "/audit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC), svc.last.To)
	assert.Equal(t, time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC), svc.last.From)

	var body audit.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "trip.create", body.Rows[0].Action)

	rec = serveAs(router, finance, "/audit?from=2026-03-01&to=2026-03-05&entity=order&entity_id=o1&action=mark_paid&actor_id=7&page=2&page_size=10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, audit.TimelineFilters{
		From:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		To:       time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		ActorID:  7,
		Entity:   "order",
		EntityID: "o1",
		Action:   "mark_paid",
		Page:     2,
		PageSize: 10,
	}, svc.last)
}

func TestTimelineRejectsBadFilters(t *testing.T) {
	router := newRouter(&stubService{})
	for _, target := range []string{
		"/audit?to=yesterday",
		"/audit?from=2026-03-10&to=2026-03-01",
		"/audit?from=2025-01-01&to=2026-03-01",
		"/audit?page=0",
		"/audit?page_size=x",
		"/audit?actor_id=-3",
	} {
		rec := serveAs(router, admin, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestTimelineRequiresAuditPermission(t *testing.T) {
	router := newRouter(&stubService{})
	assert.Equal(t, http.StatusForbidden, serveAs(router, operator, "/audit").Code)
	assert.Equal(t, http.StatusUnauthorized, serveAs(router, nil, "/audit").Code)
	assert.Equal(t, http.StatusForbidden, serveAs(router, operator, "/audit/export.csv").Code)
}

func TestExportCSV(t *testing.T) {
	svc := &stubService{rows: []audit.TimelineRow{
		{At: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC), ActorID: 11, ActorName: "Operator Kemang", Action: "trip.create", Entity: "trip", EntityID: "t1"},
	}}
	router := newRouter(svc)

	rec := serveAs(router, admin, "/audit/export.csv?entity=trip")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "audit-timeline.csv")
	assert.Contains(t, rec.Body.String(), "2026-03-10T08:00:00Z,11,Operator Kemang,trip.create,trip,t1,")
	assert.Equal(t, "trip", svc.last.Entity)

	svc.err = errors.New("db down")
	rec = serveAs(router, admin, "/audit/export.csv")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
