package trips

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/depot-ops/depot-ops/internal/evidence"
	"github.com/depot-ops/depot-ops/internal/platform/httpx"
	"github.com/depot-ops/depot-ops/internal/rbac"
	"github.com/depot-ops/depot-ops/internal/shared"
)

// Observer counts engine operations by outcome.
type Observer interface {
	ObserveTripOp(op, outcome string)
}

// Handler serves /delivery.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	renderer  *ManifestRenderer
	validator *validator.Validate
	rbac      rbac.Middleware
	observer  Observer
	maxPhoto  int64
}

// NewHandler builds the delivery handler. renderer and observer may be nil.
func NewHandler(logger *slog.Logger, service *Service, renderer *ManifestRenderer, rbac rbac.Middleware, observer Observer, maxPhoto int64) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		renderer:  renderer,
		validator: validator.New(),
		rbac:      rbac,
		observer:  observer,
		maxPhoto:  maxPhoto,
	}
}

// MountRoutes registers trip and delivery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/trips", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAny(shared.PermTripView))
			r.Get("/", h.List)
			r.Get("/{id}", h.Show)
			r.Get("/{id}/manifest", h.Manifest)
		})
		r.Group(func(r chi.Router) {
			r.Use(h.rbac.RequireAll(shared.PermTripManage))
			r.Post("/", h.Create)
			r.Delete("/{id}", h.Delete)
			r.Put("/{id}/driver", h.UpdateDriver)
			r.Post("/{id}/orders", h.Assign)
			r.Delete("/{id}/orders/{orderID}", h.Unassign)
			r.Post("/{id}/orders/{orderID}/move", h.Move)
		})
		r.With(h.rbac.RequireAll(shared.PermDeliveryConfirm)).Post("/{id}/complete", h.Complete)
	})
	r.With(h.rbac.RequireAny(shared.PermTripView)).Get("/unassigned", h.Unassigned)
	r.With(h.rbac.RequireAll(shared.PermDeliveryConfirm)).Post("/deliveries/{orderID}", h.ConfirmDelivery)
	r.With(h.rbac.RequireAll(shared.PermDeliveryReconcile)).Get("/reconcile", h.Reconcile)
}

// outcome buckets an error for metrics.
func outcome(err error) string {
	var sw *StoreWriteError
	var up *EvidenceUploadError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &sw):
		return "store_error"
	case errors.As(err, &up):
		return "evidence_error"
	default:
		return "rejected"
	}
}

func (h *Handler) observe(op string, err error) {
	if h.observer != nil {
		h.observer.ObserveTripOp(op, outcome(err))
	}
}

// respondError maps engine errors onto problem responses.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var sw *StoreWriteError
	var up *EvidenceUploadError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrNonEmptyTrip):
		httpx.Problem(w, http.StatusConflict, "Trip Not Empty", err.Error())
	case errors.Is(err, ErrNoOrders):
		httpx.Problem(w, http.StatusUnprocessableEntity, "No Orders", err.Error())
	case errors.Is(err, ErrConfirmationRequired):
		httpx.Problem(w, http.StatusPreconditionRequired, "Confirmation Required", err.Error())
	case errors.Is(err, ErrEvidenceRequired):
		httpx.Problem(w, http.StatusBadRequest, "Evidence Required", err.Error())
	case errors.Is(err, ErrInvalidInput):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &up):
		httpx.Problem(w, http.StatusBadGateway, "Evidence Upload Failed", err.Error())
	case errors.As(err, &sw):
		detail := "no changes were saved"
		if sw.Committed {
			detail = "some changes were saved; run reconcile before retrying"
		}
		httpx.Problem(w, http.StatusInternalServerError, "Store Write Failed", fmt.Sprintf("%s during %s: %s", sw.Op, sw.Step, detail))
	default:
		httpx.RespondError(w, err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.observe(op, err)
	var sw *StoreWriteError
	if errors.As(err, &sw) {
		h.logger.Error("trip operation failed", slog.String("op", op), slog.String("step", sw.Step), slog.Any("error", err))
	} else {
		h.logger.Warn("trip operation rejected", slog.String("op", op), slog.Any("error", err))
	}
	h.respondError(w, err)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		httpx.ValidationProblem(w, err)
		return false
	}
	return true
}

func actorOf(r *http.Request) shared.Actor {
	actor, _ := shared.ActorFromContext(r.Context())
	return actor
}

// List handles the trip board for the actor's branch.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	trips, err := h.service.ListTrips(r.Context(), actorOf(r))
	if err != nil {
		h.logger.Error("list trips failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": trips, "mode": h.service.Policy().Mode})
}

// Show handles a single trip with its roster.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	trip, err := h.service.GetTrip(r.Context(), actorOf(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, trip)
}

// Create handles trip creation.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTripRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	trip, err := h.service.CreateTrip(r.Context(), actorOf(r), req.Branch)
	if err != nil {
		h.fail(w, "create", err)
		return
	}
	h.observe("create", nil)
	httpx.JSON(w, http.StatusCreated, trip)
}

// Delete handles removal of an empty trip.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTrip(r.Context(), actorOf(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete", err)
		return
	}
	h.observe("delete", nil)
	w.WriteHeader(http.StatusNoContent)
}

// UpdateDriver handles setting the trip driver.
func (h *Handler) UpdateDriver(w http.ResponseWriter, r *http.Request) {
	var req DriverRequest
	if !h.decode(w, r, &req) {
		return
	}
	trip, err := h.service.UpdateDriver(r.Context(), actorOf(r), chi.URLParam(r, "id"), req.Driver)
	if err != nil {
		h.fail(w, "driver", err)
		return
	}
	h.observe("driver", nil)
	httpx.JSON(w, http.StatusOK, trip)
}

// Assign handles adding an order to a trip.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if !h.decode(w, r, &req) {
		return
	}
	trip, err := h.service.AssignOrder(r.Context(), actorOf(r), req.OrderID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "assign", err)
		return
	}
	h.observe("assign", nil)
	httpx.JSON(w, http.StatusOK, trip)
}

// Unassign handles removing an order from a trip.
func (h *Handler) Unassign(w http.ResponseWriter, r *http.Request) {
	trip, err := h.service.UnassignOrder(r.Context(), actorOf(r), chi.URLParam(r, "orderID"), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, "unassign", err)
		return
	}
	h.observe("unassign", nil)
	httpx.JSON(w, http.StatusOK, trip)
}

// Move handles reordering an order within its trip.
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !h.decode(w, r, &req) {
		return
	}
	trip, err := h.service.ReorderWithinTrip(r.Context(), actorOf(r), chi.URLParam(r, "id"), chi.URLParam(r, "orderID"), req.Direction)
	if err != nil {
		h.fail(w, "reorder", err)
		return
	}
	h.observe("reorder", nil)
	httpx.JSON(w, http.StatusOK, trip)
}

// Complete handles bulk delivery of a trip.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.CompleteTrip(r.Context(), actorOf(r), chi.URLParam(r, "id"), req.Confirm)
	if err != nil {
		h.fail(w, "complete", err)
		return
	}
	h.observe("complete", nil)
	httpx.JSON(w, http.StatusOK, res)
}

// Unassigned handles the list of pending orders not on any trip.
func (h *Handler) Unassigned(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListUnassigned(r.Context(), actorOf(r))
	if err != nil {
		h.logger.Error("list unassigned failed", slog.Any("error", err))
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": list, "total": len(list)})
}

// ConfirmDelivery handles a single delivery with its photo.
func (h *Handler) ConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	photo, err := evidence.FromRequest(r, "photo", h.maxPhoto)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid photo", err.Error())
		return
	}
	res, err := h.service.ConfirmDelivery(r.Context(), actorOf(r), chi.URLParam(r, "orderID"), photo, r.Header.Get(shared.IdempotencyHeader))
	if err != nil {
		h.fail(w, "deliver", err)
		return
	}
	h.observe("deliver", nil)
	httpx.JSON(w, http.StatusOK, res)
}

// Reconcile handles an on-demand consistency scan.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Reconcile(r.Context())
	if err != nil {
		h.logger.Error("reconcile failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// Manifest handles the printable trip manifest.
func (h *Handler) Manifest(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Manifest(r.Context(), actorOf(r), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if h.renderer == nil {
		httpx.JSON(w, http.StatusOK, m)
		return
	}
	switch r.URL.Query().Get("format") {
	case "pdf":
		pdf, err := h.renderer.PDF(r.Context(), m)
		if err != nil {
			h.logger.Error("render manifest pdf", slog.Any("error", err), slog.String("trip_id", m.Trip.ID))
			httpx.Problem(w, http.StatusBadGateway, "Renderer Unavailable", err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", ManifestFilename(m.Trip)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
	case "json":
		httpx.JSON(w, http.StatusOK, m)
	default:
		var buf bytes.Buffer
		if err := h.renderer.HTML(&buf, m); err != nil {
			h.logger.Error("render manifest html", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}
