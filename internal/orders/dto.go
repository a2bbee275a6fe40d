package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabdesk/fabdesk/internal/shared"
)

// CreateOrderRequest is the POST /orders body. Client supplied costs,
// totals and balances are not part of the contract and are ignored.
type CreateOrderRequest struct {
	ClientID        uuid.UUID       `json:"clientId" validate:"required"`
	DesignType      string          `json:"designType"`
	Materials       []LineRequest   `json:"materials" validate:"dive"`
	LabourCost      decimal.Decimal `json:"labourCost" validate:"gte=0"`
	AdvanceReceived decimal.Decimal `json:"advanceReceived" validate:"gte=0"`
	AdvanceMethod   string          `json:"advanceMethod" validate:"omitempty,oneof=cash upi bank cheque card"`
	Date            shared.Date     `json:"date"`
	DeliveryDate    *shared.Date    `json:"deliveryDate"`
	Status          string          `json:"status" validate:"omitempty,oneof=Pending 'In Progress' Completed Billed"`
}

// LineRequest is one requested material line.
type LineRequest struct {
	MaterialID uuid.UUID        `json:"materialId" validate:"required"`
	Quantity   decimal.Decimal  `json:"quantity" validate:"gt=0"`
	Width      *decimal.Decimal `json:"width"`
	Height     *decimal.Decimal `json:"height"`
}

// UpdateOrderRequest is the PATCH /orders/{id} body.
type UpdateOrderRequest struct {
	DesignType      *string          `json:"designType"`
	Date            *shared.Date     `json:"date"`
	DeliveryDate    *shared.Date     `json:"deliveryDate"`
	Status          *string          `json:"status"`
	LabourCost      *decimal.Decimal `json:"labourCost"`
	AdvanceReceived *decimal.Decimal `json:"advanceReceived"`
	Payments        *[]PaymentEntry  `json:"payments" validate:"omitempty,dive"`
	Materials       json.RawMessage  `json:"materials"`
}

// PaymentEntry is a payment ledger entry submitted with an update.
type PaymentEntry struct {
	Amount  decimal.Decimal `json:"amount" validate:"gt=0"`
	Date    shared.Date     `json:"date"`
	Method  string          `json:"method" validate:"required,oneof=cash upi bank cheque card"`
	Account string          `json:"account"`
}

// PaymentRequest is the POST /orders/{id}/payments body.
type PaymentRequest struct {
	Amount  decimal.Decimal `json:"amount" validate:"gt=0"`
	Method  string          `json:"method" validate:"required,oneof=cash upi bank cheque card"`
	Account string          `json:"account"`
}

func (r CreateOrderRequest) toInput(actorID, idempotencyKey string) CreateInput {
	lines := make([]LineInput, 0, len(r.Materials))
	for _, l := range r.Materials {
		lines = append(lines, LineInput{MaterialID: l.MaterialID, Quantity: l.Quantity, Width: l.Width, Height: l.Height})
	}
	return CreateInput{
		ClientID:        r.ClientID,
		DesignType:      r.DesignType,
		Lines:           lines,
		LabourCost:      r.LabourCost,
		AdvanceReceived: r.AdvanceReceived,
		AdvanceMethod:   PaymentMethod(r.AdvanceMethod),
		Date:            r.Date.Time,
		DeliveryDate:    datePtr(r.DeliveryDate),
		Status:          Status(r.Status),
		ActorID:         actorID,
		IdempotencyKey:  idempotencyKey,
	}
}

func (r UpdateOrderRequest) toInput(actorID string, now time.Time) (UpdateInput, error) {
	if len(r.Materials) > 0 && string(r.Materials) != "null" {
		return UpdateInput{}, ErrMaterialsImmutable
	}
	in := UpdateInput{
		DesignType:      r.DesignType,
		LabourCost:      r.LabourCost,
		AdvanceReceived: r.AdvanceReceived,
		DeliveryDate:    datePtr(r.DeliveryDate),
		ActorID:         actorID,
	}
	if r.Date != nil && !r.Date.IsZero() {
		d := r.Date.Time
		in.Date = &d
	}
	if r.Status != nil {
		st := Status(*r.Status)
		in.Status = &st
	}
	if r.Payments != nil {
		payments := make([]Payment, 0, len(*r.Payments))
		for _, p := range *r.Payments {
			payments = append(payments, Payment{
				Amount:  p.Amount,
				Date:    p.Date.OrNow(now),
				Method:  PaymentMethod(p.Method),
				Account: p.Account,
			})
		}
		in.Payments = &payments
	}
	return in, nil
}

func datePtr(d *shared.Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
