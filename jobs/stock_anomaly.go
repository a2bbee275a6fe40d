package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/fabdesk/fabdesk/internal/inventory"
	jobmetrics "github.com/fabdesk/fabdesk/internal/jobs"
)

// StockAnomalyJob records anomalies raised by stock mutations and scans.
type StockAnomalyJob struct {
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStockAnomalyJob constructs the job.
func NewStockAnomalyJob(logger *slog.Logger, metrics *jobmetrics.Metrics) *StockAnomalyJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &StockAnomalyJob{Logger: logger, Metrics: metrics}
}

// Handle processes a TaskStockAnomaly task.
func (j *StockAnomalyJob) Handle(ctx context.Context, task *asynq.Task) error {
	tracker := j.Metrics.Track(TaskStockAnomaly)
	var a inventory.Anomaly
	if err := json.Unmarshal(task.Payload(), &a); err != nil {
		return tracker.End(fmt.Errorf("decode stock anomaly: %v: %w", err, asynq.SkipRetry))
	}
	if a.Kind == "" || !a.Business.Valid() {
		return tracker.End(fmt.Errorf("stock anomaly missing kind or business: %w", asynq.SkipRetry))
	}
	j.Logger.Warn("stock anomaly",
		slog.String("kind", string(a.Kind)),
		slog.String("business", string(a.Business)),
		slog.String("material_id", a.MaterialID.String()),
		slog.String("material_type", a.MaterialType),
		slog.String("current_stock", a.CurrentStock.String()),
		slog.String("low_stock_alert", a.LowStockAlert.String()),
		slog.String("source", a.Source),
		slog.Time("detected_at", a.DetectedAt))
	j.Metrics.AddAnomalies(string(a.Kind), string(a.Business), 1)
	return tracker.End(nil)
}
