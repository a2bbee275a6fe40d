package orders

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultSheetArea is the nominal sheet area used when a material size
// cannot be parsed.
var DefaultSheetArea = decimal.NewFromInt(32)

// PaymentTolerance is how far a payment may overshoot the total before it
// is rejected.
var PaymentTolerance = decimal.RequireFromString("0.01")

// Totals is the derived money breakdown of an order.
type Totals struct {
	MaterialCost decimal.Decimal `json:"materialCost"`
	TotalValue   decimal.Decimal `json:"totalValue"`
}

// ComputeTotals sums line costs and labour.
func ComputeTotals(lines []Line, labourCost decimal.Decimal) Totals {
	materialCost := decimal.Zero
	for _, l := range lines {
		materialCost = materialCost.Add(l.Cost)
	}
	return Totals{MaterialCost: materialCost, TotalValue: materialCost.Add(labourCost)}
}

// SheetArea parses a "WxH" size such as "8x4" or "8 X 4". Unparseable or
// non-positive sizes fall back to DefaultSheetArea.
func SheetArea(size string) decimal.Decimal {
	parts := strings.Split(strings.ToLower(size), "x")
	if len(parts) != 2 {
		return DefaultSheetArea
	}
	w, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
	if err != nil {
		return DefaultSheetArea
	}
	h, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
	if err != nil {
		return DefaultSheetArea
	}
	area := w.Mul(h)
	if !area.IsPositive() {
		return DefaultSheetArea
	}
	return area
}

// ComputeLineQuantity scales baseQty by the custom area over the sheet area
// when both width and height are positive. Quantities carry three decimals,
// matching stock precision.
func ComputeLineQuantity(baseQty decimal.Decimal, width, height *decimal.Decimal, sheetSize string) decimal.Decimal {
	if width == nil || height == nil || !width.IsPositive() || !height.IsPositive() {
		return baseQty.Round(3)
	}
	custom := width.Mul(*height)
	return custom.Div(SheetArea(sheetSize)).Mul(baseQty).Round(3)
}

// LineCost prices a quantity at a unit rate.
func LineCost(qty, rate decimal.Decimal) decimal.Decimal {
	return qty.Mul(rate).Round(2)
}

// ValidateAdvance rejects an advance larger than the order total.
func ValidateAdvance(advance, total decimal.Decimal) error {
	if advance.GreaterThan(total) {
		return ErrAdvanceExceedsTotal
	}
	return nil
}

// RecomputeBalance returns max(0, total - advance).
func RecomputeBalance(total, advance decimal.Decimal) decimal.Decimal {
	balance := total.Sub(advance)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// SumPayments totals the payment ledger.
func SumPayments(payments []Payment) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range payments {
		sum = sum.Add(p.Amount)
	}
	return sum
}

// Recalculate re-derives TotalValue and BalanceAmount from the stored lines,
// labour and advance.
func (o *Order) Recalculate() {
	o.TotalValue = ComputeTotals(o.Materials, o.LabourCost).TotalValue
	o.BalanceAmount = RecomputeBalance(o.TotalValue, o.AdvanceReceived)
}

// AddPayment appends p to the ledger and raises the advance. The order is
// left untouched when the payment is rejected. An overshoot within
// PaymentTolerance is accepted; the ledger entry and the advance are both
// capped at the total so the advance stays equal to the payment sum.
func (o *Order) AddPayment(p Payment) error {
	if !p.Amount.IsPositive() {
		return ErrInvalidPaymentAmount
	}
	if !p.Method.Valid() {
		return ErrInvalidMethod
	}
	advance := o.AdvanceReceived.Add(p.Amount)
	if advance.GreaterThan(o.TotalValue.Add(PaymentTolerance)) {
		return ErrPaymentExceedsTotal
	}
	if advance.GreaterThan(o.TotalValue) {
		advance = o.TotalValue
		p.Amount = advance.Sub(o.AdvanceReceived)
	}
	o.Payments = append(o.Payments, p)
	o.AdvanceReceived = advance
	o.BalanceAmount = RecomputeBalance(o.TotalValue, o.AdvanceReceived)
	return nil
}
