package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/depot-ops/depot-ops/internal/evidence"
	"github.com/depot-ops/depot-ops/internal/platform/httpx"
	"github.com/depot-ops/depot-ops/internal/rbac"
	"github.com/depot-ops/depot-ops/internal/shared"
)

// Handler serves /sales/orders.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      rbac.Middleware
}

func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
		rbac:      rbac,
	}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermOrderView))
		r.Get("/", h.List)
		r.Get("/summary", h.Summary)
		r.Get("/{id}", h.Show)
	})
	r.With(h.rbac.RequireAll(shared.PermOrderCreate)).Post("/", h.Create)
	r.With(h.rbac.RequireAll(shared.PermOrderEdit)).Put("/{id}", h.Update)
	r.With(h.rbac.RequireAll(shared.PermOrderDelete)).Delete("/{id}", h.Delete)
}

func listRequest(r *http.Request) ListRequest {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultListLimit
	}
	return ListRequest{
		Status:        Status(q.Get("status")),
		PaymentStatus: PaymentStatus(q.Get("payment_status")),
		Limit:         limit,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	orders, err := h.service.List(r.Context(), actor, listRequest(r))
	if err != nil {
		h.logger.Error("list orders failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": orders, "total": len(orders)})
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	summary, err := h.service.Summary(r.Context(), actor)
	if err != nil {
		h.logger.Error("order summary failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	order, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (OrderRequest, bool) {
	var req OrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.ValidationProblem(w, err)
		return req, false
	}
	return req, true
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	order, err := h.service.Create(r.Context(), actor, req)
	if err != nil {
		h.logger.Warn("create order failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	actor, _ := shared.ActorFromContext(r.Context())
	order, err := h.service.Update(r.Context(), actor, id, req)
	if err != nil {
		h.logger.Warn("update order failed", slog.Any("error", err), slog.String("order_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PaymentsHandler serves /finance/payments.
type PaymentsHandler struct {
	logger   *slog.Logger
	service  *Service
	rbac     rbac.Middleware
	maxPhoto int64
}

func NewPaymentsHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware, maxPhoto int64) *PaymentsHandler {
	return &PaymentsHandler{logger: logger, service: service, rbac: rbac, maxPhoto: maxPhoto}
}

func (h *PaymentsHandler) MountRoutes(r chi.Router) {
	r.Use(h.rbac.RequireAny(shared.PermPaymentRecord))
	r.Get("/", h.List)
	r.Get("/summary", h.Summary)
	r.Post("/{id}", h.MarkPaid)
}

// List defaults to unpaid orders, the finance work queue.
func (h *PaymentsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	req := listRequest(r)
	if req.PaymentStatus == "" {
		req.PaymentStatus = PaymentUnpaid
	}
	orders, err := h.service.List(r.Context(), actor, req)
	if err != nil {
		h.logger.Error("list payments failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": orders, "total": len(orders)})
}

func (h *PaymentsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.ActorFromContext(r.Context())
	summary, err := h.service.Summary(r.Context(), actor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *PaymentsHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	photo, err := evidence.FromRequest(r, "photo", h.maxPhoto)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid photo", err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	actor, _ := shared.ActorFromContext(r.Context())
	order, err := h.service.MarkPaid(r.Context(), actor, id, photo, r.Header.Get(shared.IdempotencyHeader))
	if err != nil {
		h.logger.Warn("mark paid failed", slog.Any("error", err), slog.String("order_id", id))
		respondEvidenceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func respondEvidenceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, evidence.ErrUploadFailed):
		httpx.Problem(w, http.StatusBadGateway, "Evidence Upload Failed", err.Error())
	case errors.Is(err, evidence.ErrNotImage), errors.Is(err, evidence.ErrNoPhoto):
		httpx.Problem(w, http.StatusBadRequest, "Invalid photo", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
