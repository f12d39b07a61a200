package shared

import "github.com/shopspring/decimal"

// UnitDiscount is the per-unit discount for one line: the customer's discount
// on refill products, zero otherwise.
func UnitDiscount(isRefill bool, customerDiscount decimal.Decimal) decimal.Decimal {
	if !isRefill || customerDiscount.IsNegative() {
		return decimal.Zero
	}
	return customerDiscount
}

// CalculateLineTotal returns (unitPrice - discount) * quantity.
func CalculateLineTotal(quantity int, unitPrice, discount decimal.Decimal) decimal.Decimal {
	return unitPrice.Sub(discount).Mul(decimal.NewFromInt(int64(quantity)))
}
