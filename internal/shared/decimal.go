package shared

import "github.com/shopspring/decimal"

// Scales of the NUMERIC money and quantity columns.
const (
	MoneyPlaces    int32 = 2
	QuantityPlaces int32 = 3
)

// RoundMoney rounds d to the stored money scale.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// RoundQuantity rounds d to the stored quantity scale.
func RoundQuantity(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}
