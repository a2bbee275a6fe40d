package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/fabdesk/fabdesk/internal/inventory"
	"github.com/fabdesk/fabdesk/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockAnomaly carries one negative or low stock anomaly.
	TaskStockAnomaly = "stock:anomaly"
	// TaskStockScan re-detects anomalies across every material of the listed businesses.
	TaskStockScan = "stock:scan"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// StockScanPayload selects the businesses a scan covers. Empty means all.
type StockScanPayload struct {
	Businesses []shared.Business `json:"businesses,omitempty"`
}

// NewStockAnomalyTask constructs an Asynq task for a detected anomaly.
func NewStockAnomalyTask(a inventory.Anomaly) (*asynq.Task, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockAnomaly, data), nil
}

// NewStockScanTask constructs the periodic scan task.
func NewStockScanTask(payload StockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockScan, data), nil
}

// NewIdempotencyCleanupTask constructs the key pruning task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
