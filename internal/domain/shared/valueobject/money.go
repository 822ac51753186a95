package valueobject

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places kept for stored amounts
const MoneyScale int32 = 2

var (
	hundred = decimal.NewFromInt(100)
	// MoneyEpsilon is the tolerance for comparing independently rounded amounts
	MoneyEpsilon = decimal.New(1, -MoneyScale)
)

// RoundMoney rounds an amount to 2 decimal places, halves rounded up (away from zero).
// Apply it once when an amount is stored, never to intermediate values.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyScale)
}

// NonNegative clamps a negative amount to zero
func NonNegative(amount decimal.Decimal) decimal.Decimal {
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// PercentageOff returns price × (1 − percent/100), never negative
func PercentageOff(price, percent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(percent.Div(hundred))
	return NonNegative(price.Mul(factor))
}

// AmountOff returns max(0, price − amount)
func AmountOff(price, amount decimal.Decimal) decimal.Decimal {
	return NonNegative(price.Sub(amount))
}

// WithinEpsilon reports whether a and b differ by at most one cent
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(MoneyEpsilon)
}
