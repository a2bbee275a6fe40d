package orders

import (
	"fmt"

	"github.com/fabdesk/fabdesk/internal/platform/httpx"
)

// Domain errors for orders.
var (
	ErrNotFound             = fmt.Errorf("orders: order %w", httpx.ErrNotFound)
	ErrDuplicateOrderNumber = fmt.Errorf("orders: order number %w", httpx.ErrDuplicate)

	ErrClientNotFound       = httpx.NewValidationError("orders: client not found")
	ErrAdvanceExceedsTotal  = httpx.NewValidationError("orders: advance received exceeds total value")
	ErrInvalidPaymentAmount = httpx.NewValidationError("orders: payment amount must be greater than zero")
	ErrPaymentExceedsTotal  = httpx.NewValidationError("orders: payment would exceed total value")
	ErrInvalidMethod        = httpx.NewValidationError("orders: unknown payment method")
	ErrInvalidStatus        = httpx.NewValidationError("orders: unknown status")
	ErrInvalidAmount        = httpx.NewValidationError("orders: amounts must be >= 0")
	ErrMaterialsImmutable   = httpx.NewValidationError("orders: materials cannot be changed after creation")
)

func materialNotFound(line int, id fmt.Stringer) error {
	return httpx.Invalidf("orders: material %s on line %d not found", id, line)
}
