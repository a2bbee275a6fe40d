package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabdesk/fabdesk/internal/shared"
)

// AnomalyKind classifies a reportable stock condition.
type AnomalyKind string

const (
	// AnomalyNegativeStock flags stock driven below zero by wastage or consumption.
	AnomalyNegativeStock AnomalyKind = "negative_stock"
	// AnomalyLowStock flags stock at or under the material's alert threshold.
	AnomalyLowStock AnomalyKind = "low_stock"
)

// Anomaly is raised after a stock mutation leaves a material negative or low.
// Negative stock is a permitted state; it is reported, never rejected.
type Anomaly struct {
	Kind          AnomalyKind     `json:"kind"`
	Business      shared.Business `json:"business"`
	MaterialID    uuid.UUID       `json:"material_id"`
	MaterialType  string          `json:"material_type"`
	CurrentStock  decimal.Decimal `json:"current_stock"`
	LowStockAlert decimal.Decimal `json:"low_stock_alert"`
	Source        string          `json:"source"`
	DetectedAt    time.Time       `json:"detected_at"`
}

// DetectAnomalies classifies the state of m after a mutation. Low stock is
// only reported when the change crossed the threshold downward.
func DetectAnomalies(before, after Material, source string, at time.Time) []Anomaly {
	var out []Anomaly
	base := Anomaly{
		Business:      after.Business,
		MaterialID:    after.ID,
		MaterialType:  after.Type,
		CurrentStock:  after.CurrentStock,
		LowStockAlert: after.LowStockAlert,
		Source:        source,
		DetectedAt:    at,
	}
	if after.IsNegative() {
		a := base
		a.Kind = AnomalyNegativeStock
		out = append(out, a)
	}
	if after.IsLow() && !before.IsLow() && !after.IsNegative() {
		a := base
		a.Kind = AnomalyLowStock
		out = append(out, a)
	}
	return out
}
