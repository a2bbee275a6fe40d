package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/fabdesk/fabdesk/internal/jobs"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// AnomalyScanner re-detects anomalies for one business.
type AnomalyScanner interface {
	ScanAnomalies(ctx context.Context, business shared.Business) (int, error)
}

// StockScanJob walks every material at or under its alert level.
type StockScanJob struct {
	Scanner AnomalyScanner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewStockScanJob constructs the scan job.
func NewStockScanJob(scanner AnomalyScanner, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockScanJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &StockScanJob{Scanner: scanner, Logger: logger, Metrics: metrics, clock: time.Now}
}

// Handle executes the scan. A failing business does not stop the others.
func (j *StockScanJob) Handle(ctx context.Context, task *asynq.Task) error {
	tracker := j.Metrics.Track(TaskStockScan)
	var payload StockScanPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return tracker.End(fmt.Errorf("decode stock scan: %v: %w", err, asynq.SkipRetry))
		}
	}
	businesses := payload.Businesses
	if len(businesses) == 0 {
		businesses = shared.Businesses()
	}

	start := j.clock()
	var errs []error
	for _, business := range businesses {
		logger := j.Logger.With(slog.String("business", string(business)))
		if !business.Valid() {
			logger.Warn("stock scan skipped unknown business")
			continue
		}
		count, err := j.Scanner.ScanAnomalies(ctx, business)
		if err != nil {
			logger.Error("stock scan failed", slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", business, err))
			continue
		}
		logger.Info("stock scan completed", slog.Int("anomalies", count))
	}
	j.Logger.Debug("stock scan finished", slog.Duration("elapsed", j.clock().Sub(start)))
	return tracker.End(errors.Join(errs...))
}
