package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabdesk/fabdesk/internal/inventory"
	jobmetrics "github.com/fabdesk/fabdesk/internal/jobs"
	"github.com/fabdesk/fabdesk/internal/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleAnomaly() inventory.Anomaly {
	return inventory.Anomaly{
		Kind:          inventory.AnomalyNegativeStock,
		Business:      shared.BusinessCNC,
		MaterialID:    uuid.New(),
		MaterialType:  "MDF 18mm",
		CurrentStock:  decimal.RequireFromString("-2.5"),
		LowStockAlert: decimal.NewFromInt(5),
		Source:        "wastage",
		DetectedAt:    time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestStockAnomalyJobCountsAnomaly(t *testing.T) {
	reg := prometheus.NewRegistry()
	job := NewStockAnomalyJob(discardLogger(), jobmetrics.NewMetrics(reg))

	task, err := NewStockAnomalyTask(sampleAnomaly())
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	assert.Equal(t, 1.0, counterValue(t, reg, "fabdesk_stock_anomalies_total",
		map[string]string{"kind": "negative_stock", "business": "cnc"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "fabdesk_jobs_total",
		map[string]string{"job": TaskStockAnomaly, "status": "success"}))
}

func TestStockAnomalyJobSkipsRetryOnBadPayload(t *testing.T) {
	job := NewStockAnomalyJob(discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskStockAnomaly, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskStockAnomaly, []byte(`{"kind":"negative_stock","business":"bakery"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type fakeScanner struct {
	mu      sync.Mutex
	calls   []shared.Business
	failFor shared.Business
}

func (f *fakeScanner) ScanAnomalies(_ context.Context, business shared.Business) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, business)
	if business == f.failFor {
		return 0, errors.New("db down")
	}
	return 2, nil
}

func TestStockScanJobCoversAllBusinesses(t *testing.T) {
	scanner := &fakeScanner{}
	job := NewStockScanJob(scanner, discardLogger(), nil)

	task, err := NewStockScanTask(StockScanPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []shared.Business{shared.BusinessCNC, shared.BusinessInterior}, scanner.calls)
}

func TestStockScanJobContinuesAfterFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	scanner := &fakeScanner{failFor: shared.BusinessCNC}
	job := NewStockScanJob(scanner, discardLogger(), jobmetrics.NewMetrics(reg))

	task, err := NewStockScanTask(StockScanPayload{Businesses: []shared.Business{"cnc", "bakery", "interior"}})
	require.NoError(t, err)
	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cnc: db down")
	assert.Equal(t, []shared.Business{shared.BusinessCNC, shared.BusinessInterior}, scanner.calls)
	assert.Equal(t, 1.0, counterValue(t, reg, "fabdesk_jobs_failures_total", map[string]string{"job": TaskStockScan}))
}

type fakeCleaner struct {
	retention time.Duration
	err       error
}

func (f *fakeCleaner) Cleanup(_ context.Context, olderThan time.Duration) error {
	f.retention = olderThan
	return f.err
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &fakeCleaner{}
	job := NewIdempotencyCleanupJob(cleaner, 0, discardLogger(), nil)
	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	assert.Equal(t, DefaultIdempotencyRetention, cleaner.retention)

	cleaner.err = errors.New("timeout")
	assert.Error(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
}

func TestClientEnqueuesStockAnomaly(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(asynq.RedisClientOpt{Addr: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	var reporter inventory.AnomalyReporter = client
	require.NoError(t, reporter.ReportStockAnomaly(context.Background(), sampleAnomaly()))

	pending, err := mr.List("asynq:{default}:pending")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestNewWorkerRejectsInvalidCron(t *testing.T) {
	mr := miniredis.RunT(t)
	task, err := NewStockScanTask(StockScanPayload{})
	require.NoError(t, err)

	_, err = NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: mr.Addr()},
		Logger:    discardLogger(),
		Cron:      []CronRegistration{{Spec: "not a cron", Task: task}},
	})
	assert.Error(t, err)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, discardLogger()).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rec.Body.String())
}
