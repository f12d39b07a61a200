package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/depot-ops/depot-ops/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDeliveryReconcile scans orders and trip rosters for disagreements.
	TaskDeliveryReconcile = "delivery:reconcile"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReconcilePayload carries the trigger of a reconcile run.
type ReconcilePayload struct {
	Trigger string `json:"trigger"`
}

// NewReconcileTask constructs a reconcile task. trigger is logged only.
func NewReconcileTask(trigger string) (*asynq.Task, error) {
	data, err := json.Marshal(ReconcilePayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeliveryReconcile, data), nil
}

// CleanupPayload configures one idempotency cleanup run.
type CleanupPayload struct {
	OlderThanSeconds int64 `json:"older_than_seconds"`
}

// NewIdempotencyCleanupTask constructs a cleanup task for keys older than retention.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(CleanupPayload{OlderThanSeconds: int64(retention / time.Second)})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
