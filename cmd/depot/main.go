package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/depot-ops/depot-ops/internal/app"
	"github.com/depot-ops/depot-ops/internal/audit"
	audithttp "github.com/depot-ops/depot-ops/internal/audit/http"
	"github.com/depot-ops/depot-ops/internal/auth"
	"github.com/depot-ops/depot-ops/internal/delivery/trips"
	"github.com/depot-ops/depot-ops/internal/evidence"
	"github.com/depot-ops/depot-ops/internal/masterdata"
	"github.com/depot-ops/depot-ops/internal/masterdata/branches"
	"github.com/depot-ops/depot-ops/internal/masterdata/products"
	"github.com/depot-ops/depot-ops/internal/observability"
	"github.com/depot-ops/depot-ops/internal/platform/cache"
	"github.com/depot-ops/depot-ops/internal/platform/db"
	"github.com/depot-ops/depot-ops/internal/rbac"
	"github.com/depot-ops/depot-ops/internal/sales/customers"
	"github.com/depot-ops/depot-ops/internal/sales/orders"
	"github.com/depot-ops/depot-ops/internal/shared"
	"github.com/depot-ops/depot-ops/internal/users"
	"github.com/depot-ops/depot-ops/jobs"
	"github.com/depot-ops/depot-ops/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "depot_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	rbacMiddleware := rbac.Middleware{Logger: logger}
	metrics := observability.NewMetrics()

	authService := auth.NewService(auth.NewRepository(pool), shared.NewAuditLogger(pool))
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	branchService := branches.NewService(branches.NewRepository(pool))
	productService := products.NewService(products.NewRepository(pool))
	masterDataHandler := masterdata.NewHandler(
		branches.NewHandler(logger, branchService, rbacMiddleware),
		products.NewHandler(logger, productService, rbacMiddleware),
	)

	usersService := users.NewService(users.NewRepository(pool), branchService)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	customerService := customers.NewService(customers.NewRepository(pool), branchService)
	customersHandler := customers.NewHandler(logger, customerService, rbacMiddleware)

	evidenceStore := evidence.NewHTTPStore(cfg.EvidenceURL, cfg.EvidenceTimeout)
	if err := evidenceStore.Ping(ctx); err != nil {
		logger.Warn("evidence store unreachable, photos will be stored inline", slog.Any("error", err))
	}
	capturer := evidence.NewCapturer(evidence.CapturerConfig{
		Store:          evidenceStore,
		InlineMaxBytes: cfg.EvidenceInlineMaxBytes,
		Logger:         logger,
		Observer:       metrics,
	})
	maxPhoto := int64(cfg.EvidenceInlineMaxBytes) * 4

	orderService := orders.NewService(orders.NewRepository(pool), customerService, productService, capturer, logger)
	ordersHandler := orders.NewHandler(logger, orderService, rbacMiddleware)
	paymentsHandler := orders.NewPaymentsHandler(logger, orderService, rbacMiddleware, maxPhoto)

	mode, err := trips.ParseMode(cfg.TripMode)
	if err != nil {
		logger.Error("trip mode", slog.Any("error", err))
		os.Exit(1)
	}
	tripService := trips.NewService(
		trips.NewRepository(pool),
		orderService,
		capturer,
		cache.NewLocker(redisClient, cfg.TripLockTTL),
		trips.Policy{Mode: mode},
		logger,
	)

	reportClient := report.NewClient(cfg.GotenbergURL, 30*time.Second)
	reportHandler := report.NewHandler(reportClient, logger)
	manifestRenderer, err := trips.NewManifestRenderer(reportClient)
	if err != nil {
		logger.Error("init manifest renderer", slog.Any("error", err))
		os.Exit(1)
	}
	tripsHandler := trips.NewHandler(logger, tripService, manifestRenderer, rbacMiddleware, metrics, maxPhoto)

	auditHandler := audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(pool)), rbacMiddleware)

	redisOpts := jobs.RedisOpt(redisClient.Options())
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, rbacMiddleware, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		Actors:            authService,
		Metrics:           metrics,
		AuthHandler:       authHandler,
		UsersHandler:      usersHandler,
		MasterDataHandler: masterDataHandler,
		CustomersHandler:  customersHandler,
		OrdersHandler:     ordersHandler,
		PaymentsHandler:   paymentsHandler,
		TripsHandler:      tripsHandler,
		ReportHandler:     reportHandler,
		AuditHandler:      auditHandler,
		JobHandler:        jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("trip_mode", string(mode)))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
