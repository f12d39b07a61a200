package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/depot-ops/depot-ops/internal/audit/http"
	"github.com/depot-ops/depot-ops/internal/auth"
	"github.com/depot-ops/depot-ops/internal/delivery/trips"
	"github.com/depot-ops/depot-ops/internal/masterdata"
	"github.com/depot-ops/depot-ops/internal/observability"
	"github.com/depot-ops/depot-ops/internal/platform/httpx"
	"github.com/depot-ops/depot-ops/internal/sales/customers"
	"github.com/depot-ops/depot-ops/internal/sales/orders"
	"github.com/depot-ops/depot-ops/internal/shared"
	"github.com/depot-ops/depot-ops/internal/users"
	"github.com/depot-ops/depot-ops/jobs"
	"github.com/depot-ops/depot-ops/report"
)

// RouterParams groups dependencies for building the HTTP router. Nil
// handlers are not mounted.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Actors         ActorResolver
	Metrics        *observability.Metrics

	AuthHandler       *auth.Handler
	UsersHandler      *users.Handler
	MasterDataHandler *masterdata.Handler
	CustomersHandler  *customers.Handler
	OrdersHandler     *orders.Handler
	PaymentsHandler   *orders.PaymentsHandler
	TripsHandler      *trips.Handler
	ReportHandler     *report.Handler
	AuditHandler      *audithttp.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with depot defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Actors:         params.Actors,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.MasterDataHandler != nil {
		r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	}
	if params.CustomersHandler != nil {
		r.Route("/sales/customers", params.CustomersHandler.MountRoutes)
	}
	if params.OrdersHandler != nil {
		r.Route("/sales/orders", params.OrdersHandler.MountRoutes)
	}
	if params.PaymentsHandler != nil {
		r.Route("/finance/payments", params.PaymentsHandler.MountRoutes)
	}
	if params.TripsHandler != nil {
		r.Route("/delivery", params.TripsHandler.MountRoutes)
	}
	if params.ReportHandler != nil {
		r.Route("/reports", params.ReportHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
