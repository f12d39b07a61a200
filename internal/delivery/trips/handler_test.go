package trips

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depot-ops/depot-ops/internal/evidence"
	"github.com/depot-ops/depot-ops/internal/platform/httpx"
	"github.com/depot-ops/depot-ops/internal/rbac"
	"github.com/depot-ops/depot-ops/internal/sales/orders"
	"github.com/depot-ops/depot-ops/internal/shared"
)

type recordingObserver struct {
	ops map[string]int
}

func (o *recordingObserver) ObserveTripOp(op, outcome string) {
	o.ops[op+"/"+outcome]++
}

type handlerFixture struct {
	*fixture
	router   chi.Router
	observer *recordingObserver
	pdf      *stubPDF
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := newFixture(ModeShared)
	pdf := &stubPDF{}
	renderer, err := NewManifestRenderer(pdf)
	require.NoError(t, err)
	obs := &recordingObserver{ops: map[string]int{}}
	r := chi.NewRouter()
	r.Route("/delivery", NewHandler(slog.Default(), f.svc, renderer, rbac.Middleware{}, obs, 0).MountRoutes)
	return &handlerFixture{fixture: f, router: r, observer: obs, pdf: pdf}
}

func (h *handlerFixture) do(actor shared.Actor, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req = req.WithContext(shared.ContextWithActor(req.Context(), actor))
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func (h *handlerFixture) doJSON(actor shared.Actor, method, path, body string) *httptest.ResponseRecorder {
	if body == "" {
		return h.do(actor, method, path, nil, "")
	}
	return h.do(actor, method, path, strings.NewReader(body), "application/json")
}

func photoForm(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="photo"; filename="antar.png"`)
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, _ = part.Write(photo.Data)
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestHandlerTripLifecycle(t *testing.T) {
	h := newHandlerFixture(t)
	sales := shared.Actor{ID: 7, Role: shared.RoleSales, Branch: "Kemang"}

	rec := h.doJSON(sales, http.MethodPost, "/delivery/trips/", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.doJSON(kemangOp, http.MethodPost, "/delivery/trips/", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var trip Trip
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trip))
	assert.Equal(t, "Trip 1", trip.Name)

	rec = h.doJSON(sales, http.MethodGet, "/delivery/trips/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"mode":"shared"`)

	o := h.addOrder("Kemang", 34000)
	rec = h.doJSON(kemangOp, http.MethodPost, "/delivery/trips/"+trip.ID+"/orders", `{"order_id":"`+o+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.doJSON(kemangOp, http.MethodPost, "/delivery/trips/"+trip.ID+"/orders", `{"order_id":"`+o+`"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = h.doJSON(kemangOp, http.MethodPost, "/delivery/trips/"+trip.ID+"/orders", `{"order_id":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.doJSON(kemangOp, http.MethodPost, "/delivery/trips/"+trip.ID+"/orders/"+o+"/move", `{"direction":"up"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.doJSON(kemangOp, http.MethodDelete, "/delivery/trips/"+trip.ID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.doJSON(kemangOp, http.MethodPut, "/delivery/trips/"+trip.ID+"/driver", `{"driver":" Pak Joko "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"driver":"Pak Joko"`)

	rec = h.doJSON(kemangOp, http.MethodPost, "/delivery/trips/"+trip.ID+"/complete", "")
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	rec = h.doJSON(kemangOp, http.MethodPost, "/delivery/trips/"+trip.ID+"/complete", `{"confirm":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var done CompletionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &done))
	assert.Equal(t, []string{o}, done.Delivered)
	assert.Equal(t, StatusCompleted, done.Trip.Status)

	rec = h.doJSON(kemangOp, http.MethodPost, "/delivery/trips/"+trip.ID+"/complete", `{"confirm":true}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.doJSON(kemangOp, http.MethodDelete, "/delivery/trips/"+trip.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = h.doJSON(kemangOp, http.MethodGet, "/delivery/trips/"+trip.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1, h.observer.ops["create/ok"])
	assert.Equal(t, 1, h.observer.ops["assign/ok"])
	assert.Equal(t, 1, h.observer.ops["assign/conflict"])
	assert.Equal(t, 1, h.observer.ops["complete/ok"])
}

func TestHandlerConfirmDelivery(t *testing.T) {
	h := newHandlerFixture(t)
	trip, err := h.svc.CreateTrip(t.Context(), kemangOp, "")
	require.NoError(t, err)
	o := h.addOrder("Kemang", 20000)
	_, err = h.svc.AssignOrder(t.Context(), kemangOp, o, trip.ID)
	require.NoError(t, err)

	rec := h.doJSON(kemangOp, http.MethodPost, "/delivery/deliveries/"+o, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Evidence Required", decodeProblem(t, rec).Title)

	h.capturer.err = &evidence.UploadError{Upload: errors.New("timeout"), Inline: evidence.ErrInlineTooLarge}
	body, ct := photoForm(t)
	rec = h.do(kemangOp, http.MethodPost, "/delivery/deliveries/"+o, body, ct)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, orders.StatusScheduled, h.order(o).Status)
	h.capturer.err = nil

	body, ct = photoForm(t)
	req := httptest.NewRequest(http.MethodPost, "/delivery/deliveries/"+o, body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set(shared.IdempotencyHeader, "tap-1")
	req = req.WithContext(shared.ContextWithActor(req.Context(), kemangOp))
	rec = httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var res DeliveryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.TripCompleted)
	assert.Equal(t, trip.ID, res.TripID)

	rec = h.do(admin, http.MethodGet, "/delivery/unassigned", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":0`)
}

func TestHandlerStoreWriteFailure(t *testing.T) {
	h := newHandlerFixture(t)
	trip, err := h.svc.CreateTrip(t.Context(), kemangOp, "")
	require.NoError(t, err)
	o := h.addOrder("Kemang", 20000)
	h.store.fail["SaveRoster"] = errors.New("connection reset")

	rec := h.doJSON(kemangOp, http.MethodPost, "/delivery/trips/"+trip.ID+"/orders", `{"order_id":"`+o+`"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, "Store Write Failed", p.Title)
	assert.Contains(t, p.Detail, "update roster")
	assert.Contains(t, p.Detail, "no changes were saved")
	assert.Equal(t, 1, h.observer.ops["assign/store_error"])

	delete(h.store.fail, "SaveRoster")
	_, err = h.svc.AssignOrder(t.Context(), kemangOp, o, trip.ID)
	require.NoError(t, err)
	h.svc.catalog = &flakyCatalog{stubCatalog: stubCatalog{store: h.store}, failOn: 2, err: errors.New("connection reset")}
	body, ct := photoForm(t)
	rec = h.do(kemangOp, http.MethodPost, "/delivery/deliveries/"+o, body, ct)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	p = decodeProblem(t, rec)
	assert.Contains(t, p.Detail, "reload order")
	assert.Contains(t, p.Detail, "some changes were saved")
	assert.Equal(t, orders.StatusDelivered, h.order(o).Status)
}

func TestHandlerManifestAndReconcile(t *testing.T) {
	h := newHandlerFixture(t)
	trip, err := h.svc.CreateTrip(t.Context(), kemangOp, "")
	require.NoError(t, err)
	o := h.addOrder("Kemang", 34000)
	_, err = h.svc.AssignOrder(t.Context(), kemangOp, o, trip.ID)
	require.NoError(t, err)

	rec := h.do(kemangOp, http.MethodGet, "/delivery/trips/"+trip.ID+"/manifest", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Rp 34.000")

	rec = h.do(kemangOp, http.MethodGet, "/delivery/trips/"+trip.ID+"/manifest?format=pdf", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "trip-1.pdf")

	h.pdf.err = errors.New("renderer offline")
	rec = h.do(kemangOp, http.MethodGet, "/delivery/trips/"+trip.ID+"/manifest?format=pdf", nil, "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = h.do(kemangOp, http.MethodGet, "/delivery/reconcile", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.True(t, report.Consistent())
	assert.Equal(t, 1, report.Trips)

	finance := shared.Actor{ID: 9, Role: shared.RoleFinance, Branch: shared.AllBranches}
	rec = h.do(finance, http.MethodGet, "/delivery/reconcile", nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "conflict", outcome(ErrConflict))
	assert.Equal(t, "not_found", outcome(ErrNotFound))
	assert.Equal(t, "store_error", outcome(&StoreWriteError{Op: "x", Step: "y", Err: errors.New("z")}))
	assert.Equal(t, "evidence_error", outcome(&EvidenceUploadError{Err: errors.New("z")}))
	assert.Equal(t, "rejected", outcome(ErrNoOrders))
}
