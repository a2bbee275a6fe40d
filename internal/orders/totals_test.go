package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTotalsIsPure(t *testing.T) {
	lines := []Line{{Cost: d("1500")}, {Cost: d("249.75")}}
	first := ComputeTotals(lines, d("400"))
	second := ComputeTotals(lines, d("400"))
	assert.Equal(t, first, second)
	assert.True(t, first.MaterialCost.Equal(d("1749.75")))
	assert.True(t, first.TotalValue.Equal(d("2149.75")))

	empty := ComputeTotals(nil, d("0"))
	assert.True(t, empty.TotalValue.IsZero())
}

func TestSheetArea(t *testing.T) {
	cases := map[string]string{
		"8x4":     "32",
		"8X4":     "32",
		" 6 x 3 ": "18",
		"2.5x4":   "10",
		"8x":      "32",
		"eight":   "32",
		"0x4":     "32",
		"-8x4":    "32",
		"8x4x2":   "32",
		"":        "32",
	}
	for size, want := range cases {
		assert.True(t, SheetArea(size).Equal(d(want)), "size %q got %s", size, SheetArea(size))
	}
}

func TestComputeLineQuantity(t *testing.T) {
	assert.True(t, ComputeLineQuantity(d("3"), nil, nil, "8x4").Equal(d("3")))
	assert.True(t, ComputeLineQuantity(d("3"), dp("4"), nil, "8x4").Equal(d("3")))
	assert.True(t, ComputeLineQuantity(d("3"), dp("0"), dp("4"), "8x4").Equal(d("3")))
	assert.True(t, ComputeLineQuantity(d("2"), dp("4"), dp("2"), "8x4").Equal(d("0.5")))
	assert.True(t, ComputeLineQuantity(d("1"), dp("6"), dp("3"), "bespoke").Equal(d("0.563")))
	assert.True(t, ComputeLineQuantity(d("1"), dp("6"), dp("3"), "6x3").Equal(d("1")))
}

func TestLineCost(t *testing.T) {
	assert.True(t, LineCost(d("3"), d("500")).Equal(d("1500")))
	assert.True(t, LineCost(d("0.563"), d("1450")).Equal(d("816.35")))
}

func TestAdvanceAndBalance(t *testing.T) {
	require.NoError(t, ValidateAdvance(d("1000"), d("1000")))
	require.ErrorIs(t, ValidateAdvance(d("1000.01"), d("1000")), ErrAdvanceExceedsTotal)
	assert.True(t, RecomputeBalance(d("1000"), d("200")).Equal(d("800")))
	assert.True(t, RecomputeBalance(d("1000"), d("1200")).IsZero())
}

func TestAddPaymentTolerance(t *testing.T) {
	o := Order{TotalValue: d("1000"), AdvanceReceived: d("999.99")}
	require.NoError(t, o.AddPayment(Payment{Amount: d("0.02"), Method: MethodCash}))
	assert.True(t, o.AdvanceReceived.Equal(d("1000")))
	assert.True(t, o.BalanceAmount.IsZero())
	require.Len(t, o.Payments, 1)
	assert.True(t, o.Payments[0].Amount.Equal(d("0.01")))

	o = Order{TotalValue: d("100")}
	require.NoError(t, o.AddPayment(Payment{Amount: d("100.01"), Method: MethodUPI}))
	assert.True(t, o.AdvanceReceived.Equal(d("100")))
	assert.True(t, SumPayments(o.Payments).Equal(o.AdvanceReceived))

	o = Order{TotalValue: d("1000"), AdvanceReceived: d("500"), BalanceAmount: d("500")}
	require.ErrorIs(t, o.AddPayment(Payment{Amount: d("500.02"), Method: MethodCash}), ErrPaymentExceedsTotal)
	assert.True(t, o.AdvanceReceived.Equal(d("500")))
	assert.Empty(t, o.Payments)
}

func TestSumPayments(t *testing.T) {
	assert.True(t, SumPayments(nil).IsZero())
	assert.True(t, SumPayments([]Payment{{Amount: d("10.5")}, {Amount: d("0.25")}}).Equal(d("10.75")))
}

func TestOrderNumbering(t *testing.T) {
	jan := time.Date(2027, time.January, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "ORD202701", OrderNumberPrefix(jan))
	assert.Equal(t, "202701", Period(jan))
	assert.Equal(t, "ORD202701-001", FormatOrderNumber(jan, 1))
	assert.Equal(t, "ORD202701-042", FormatOrderNumber(jan, 42))
	assert.Equal(t, "ORD202701-1000", FormatOrderNumber(jan, 1000))

	cases := map[string]int{
		"":               1,
		"ORD202701-001":  2,
		"ORD202701-099":  100,
		"ORD202701-999":  1000,
		"ORD202701-1000": 1001,
		"ORD202701":      1,
		"ORD-2027-01":    1,
		"ORD202701-abc":  1,
	}
	for last, want := range cases {
		assert.Equal(t, want, NextSequence(last), last)
	}

	assert.True(t, WellFormed("ORD202701-001"))
	assert.True(t, WellFormed("ORD202701-1000"))
	assert.False(t, WellFormed("ORD202701-001a"))
	assert.False(t, WellFormed("ORD2027-001"))
}

func TestSequentialNumbersAreMonotonic(t *testing.T) {
	now := time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)
	last := ""
	for i := 1; i <= 1005; i++ {
		next := FormatOrderNumber(now, NextSequence(last))
		assert.Equal(t, FormatOrderNumber(now, i), next)
		last = next
	}
}
