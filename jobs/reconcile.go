package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/depot-ops/depot-ops/internal/delivery/trips"
	jobmetrics "github.com/depot-ops/depot-ops/internal/jobs"
)

// maxLoggedFindings bounds per-finding log lines of one run.
const maxLoggedFindings = 50

// Reconciler produces a consistency report of orders against trip rosters.
type Reconciler interface {
	Reconcile(ctx context.Context) (*trips.Report, error)
}

// ReconcileJob runs the reconcile scan and exports its findings as gauges.
type ReconcileJob struct {
	Reconciler Reconciler
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewReconcileJob initialises the reconcile handler.
func NewReconcileJob(reconciler Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReconcileJob {
	return &ReconcileJob{Reconciler: reconciler, Logger: logger, Metrics: metrics}
}

// Handle executes one scan. Findings are reported, never repaired.
func (j *ReconcileJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Reconciler == nil {
		return errors.New("reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskDeliveryReconcile)
	logger := j.logger().With(slog.String("trigger", payload.Trigger))

	report, err := j.Reconciler.Reconcile(ctx)
	if err != nil {
		logger.Error("reconcile scan failed", slog.Any("error", err))
		return tracker.End(err)
	}

	for _, kind := range trips.FindingKinds() {
		j.metrics().SetInconsistencies(string(kind), report.Count(kind))
	}
	for i, f := range report.Findings {
		if i == maxLoggedFindings {
			logger.Warn("further findings omitted", slog.Int("omitted", len(report.Findings)-i))
			break
		}
		logger.Warn("order and roster disagree",
			slog.String("kind", string(f.Kind)),
			slog.String("order_id", f.OrderID),
			slog.String("status", string(f.Status)),
			slog.String("branch", f.Branch),
			slog.Any("trip_ids", f.TripIDs),
		)
	}

	logger.Info("completed reconcile scan",
		slog.Int("trips", report.Trips),
		slog.Int("orders", report.Orders),
		slog.Int("findings", len(report.Findings)),
		slog.Duration("duration", time.Since(start)),
	)
	return tracker.End(nil)
}

func (j *ReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDeliveryReconcile))
	}
	return slog.Default().With(slog.String("job", TaskDeliveryReconcile))
}

func (j *ReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
