// Package orders keeps order totals, payment ledgers and stock consumption
// consistent across the order lifecycle.
package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabdesk/fabdesk/internal/shared"
)

// Status is the workflow state of an order. Any state may follow any other.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusBilled     Status = "Billed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusBilled:
		return true
	}
	return false
}

// PaymentMethod names how a payment was received.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodUPI    PaymentMethod = "upi"
	MethodBank   PaymentMethod = "bank"
	MethodCheque PaymentMethod = "cheque"
	MethodCard   PaymentMethod = "card"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodUPI, MethodBank, MethodCheque, MethodCard:
		return true
	}
	return false
}

// ClientSnapshot is copied from the client when the order is created and
// never re-synced.
type ClientSnapshot struct {
	Name    string `json:"name"`
	Mobile  string `json:"mobile"`
	Type    string `json:"type"`
	Address string `json:"address"`
}

// MaterialSnapshot is copied from the material when the order is created.
type MaterialSnapshot struct {
	Type      string `json:"type"`
	Size      string `json:"size"`
	Thickness string `json:"thickness"`
}

// Line is one material consumed by an order. Quantity is the amount deducted
// from stock, already scaled by any custom width and height.
type Line struct {
	MaterialID   uuid.UUID        `json:"materialId"`
	BaseQuantity decimal.Decimal  `json:"baseQuantity"`
	Quantity     decimal.Decimal  `json:"quantity"`
	Width        *decimal.Decimal `json:"width,omitempty"`
	Height       *decimal.Decimal `json:"height,omitempty"`
	Rate         decimal.Decimal  `json:"rate"`
	Cost         decimal.Decimal  `json:"cost"`
	Material     MaterialSnapshot `json:"materialSnapshot"`
}

// Payment is one entry of the order's payment ledger.
type Payment struct {
	Amount  decimal.Decimal `json:"amount"`
	Date    time.Time       `json:"date"`
	Method  PaymentMethod   `json:"method"`
	Account string          `json:"account,omitempty"`
}

// Order is a customer job with its cost breakdown and payment ledger.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	Business        shared.Business `json:"business"`
	OrderNumber     string          `json:"orderNumber"`
	Date            time.Time       `json:"date"`
	ClientID        uuid.UUID       `json:"clientId"`
	DesignType      string          `json:"designType"`
	Materials       []Line          `json:"materials"`
	LabourCost      decimal.Decimal `json:"labourCost"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	AdvanceReceived decimal.Decimal `json:"advanceReceived"`
	BalanceAmount   decimal.Decimal `json:"balanceAmount"`
	Payments        []Payment       `json:"payments"`
	DeliveryDate    *time.Time      `json:"deliveryDate,omitempty"`
	Status          Status          `json:"status"`
	Client          ClientSnapshot  `json:"clientSnapshot"`
	CreatedBy       string          `json:"createdBy,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// LineInput is a requested material line before pricing.
type LineInput struct {
	MaterialID uuid.UUID
	Quantity   decimal.Decimal
	Width      *decimal.Decimal
	Height     *decimal.Decimal
}

// CreateInput describes a new order. Costs and balances are always derived
// server side.
type CreateInput struct {
	ClientID        uuid.UUID
	DesignType      string
	Lines           []LineInput
	LabourCost      decimal.Decimal
	AdvanceReceived decimal.Decimal
	AdvanceMethod   PaymentMethod
	Date            time.Time
	DeliveryDate    *time.Time
	Status          Status
	ActorID         string
	IdempotencyKey  string
}

// UpdateInput is a partial update. Nil fields are left untouched.
type UpdateInput struct {
	DesignType      *string
	Date            *time.Time
	DeliveryDate    *time.Time
	Status          *Status
	LabourCost      *decimal.Decimal
	AdvanceReceived *decimal.Decimal
	Payments        *[]Payment
	ActorID         string
}

// PaymentInput records one payment against an order.
type PaymentInput struct {
	Amount  decimal.Decimal
	Method  PaymentMethod
	Account string
	ActorID string
}

// ListFilter narrows order listings.
type ListFilter struct {
	Status   Status
	ClientID uuid.UUID
	From     time.Time
	To       time.Time
	shared.Page
}
