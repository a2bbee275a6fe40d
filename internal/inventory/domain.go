package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabdesk/fabdesk/internal/platform/httpx"
	"github.com/fabdesk/fabdesk/internal/shared"
)

// Material is a stocked sheet-good SKU. CurrentStock is the single mutable
// source of truth for on-hand quantity; OpeningStock never changes after intake.
type Material struct {
	ID            uuid.UUID       `json:"id"`
	Business      shared.Business `json:"business"`
	Type          string          `json:"type"`
	Size          string          `json:"size"`
	Thickness     string          `json:"thickness"`
	OpeningStock  decimal.Decimal `json:"openingStock"`
	CurrentStock  decimal.Decimal `json:"currentStock"`
	LowStockAlert decimal.Decimal `json:"lowStockAlert"`
	Rate          decimal.Decimal `json:"rate"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// IsNegative reports stock below zero.
func (m Material) IsNegative() bool {
	return m.CurrentStock.IsNegative()
}

// IsLow reports stock at or under the configured alert threshold.
func (m Material) IsLow() bool {
	return m.LowStockAlert.IsPositive() && m.CurrentStock.LessThanOrEqual(m.LowStockAlert)
}

// Purchase is an append-only stock intake record.
type Purchase struct {
	ID         uuid.UUID       `json:"id"`
	Business   shared.Business `json:"business"`
	MaterialID uuid.UUID       `json:"materialId"`
	Date       time.Time       `json:"date"`
	Supplier   string          `json:"supplier"`
	Quantity   decimal.Decimal `json:"quantity"`
	Rate       decimal.Decimal `json:"rate"`
	Total      decimal.Decimal `json:"total"`
	CreatedBy  string          `json:"createdBy,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Wastage is an append-only record of material lost on the shop floor.
type Wastage struct {
	ID         uuid.UUID       `json:"id"`
	Business   shared.Business `json:"business"`
	MaterialID uuid.UUID       `json:"materialId"`
	Date       time.Time       `json:"date"`
	Quantity   decimal.Decimal `json:"quantity"`
	Reason     string          `json:"reason"`
	CreatedBy  string          `json:"createdBy,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// StockAdjustment is the immutable ledger entry written by a reconciliation.
type StockAdjustment struct {
	ID            uuid.UUID       `json:"id"`
	Business      shared.Business `json:"business"`
	MaterialID    uuid.UUID       `json:"materialId"`
	Date          time.Time       `json:"date"`
	PreviousStock decimal.Decimal `json:"previousStock"`
	NewStock      decimal.Decimal `json:"newStock"`
	Adjustment    decimal.Decimal `json:"adjustment"`
	Reason        string          `json:"reason"`
	CreatedBy     string          `json:"createdBy,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Line is one material quantity consumed by, or restored from, an order.
type Line struct {
	MaterialID uuid.UUID
	Quantity   decimal.Decimal
}

// History lists every stock movement recorded against a material.
type History struct {
	Purchases   []Purchase        `json:"purchases"`
	Wastages    []Wastage         `json:"wastages"`
	Adjustments []StockAdjustment `json:"adjustments"`
}

// MaterialInput describes a stock intake.
type MaterialInput struct {
	Type          string
	Size          string
	Thickness     string
	OpeningStock  decimal.Decimal
	LowStockAlert decimal.Decimal
	Rate          decimal.Decimal
	ActorID       string
}

// MaterialPatch lists the manually editable fields of a material.
type MaterialPatch struct {
	Type          *string
	Size          *string
	Thickness     *string
	LowStockAlert *decimal.Decimal
	Rate          *decimal.Decimal
	ActorID       string
}

// MaterialFilter narrows material listings.
type MaterialFilter struct {
	Type string
	shared.Page
}

// PurchaseInput describes a purchase entry.
type PurchaseInput struct {
	MaterialID     uuid.UUID
	Date           time.Time
	Supplier       string
	Quantity       decimal.Decimal
	Rate           decimal.Decimal
	ActorID        string
	IdempotencyKey string
}

// WastageInput describes a wastage entry.
type WastageInput struct {
	MaterialID     uuid.UUID
	Date           time.Time
	Quantity       decimal.Decimal
	Reason         string
	ActorID        string
	IdempotencyKey string
}

// ReconcileInput carries an operator's physical count.
type ReconcileInput struct {
	MaterialID uuid.UUID
	NewStock   decimal.Decimal
	Reason     string
	Date       time.Time
	ActorID    string
}

// ErrMaterialNotFound is returned when a referenced material does not exist.
var ErrMaterialNotFound = fmt.Errorf("inventory: material %w", httpx.ErrNotFound)

// ErrInvalidQuantity indicates a non-positive movement quantity.
var ErrInvalidQuantity = httpx.NewValidationError("inventory: quantity must be greater than zero")

// ErrInvalidRate indicates a negative unit rate.
var ErrInvalidRate = httpx.NewValidationError("inventory: rate must be >= 0")
