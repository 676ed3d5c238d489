// Package shipping computes per-item shipping rates.
package shipping

import "github.com/shopspring/decimal"

// Calculator applies a flat rate below the free-shipping threshold and zero
// at or above it. The rate is a function of the cart subtotal only, so
// recalculating with an unchanged subtotal yields the same rate.
type Calculator struct {
	FlatRate      decimal.Decimal
	FreeThreshold decimal.Decimal
}

// RateFor returns the shipping rate for a cart subtotal.
func (c Calculator) RateFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(c.FreeThreshold) {
		return decimal.Zero
	}
	return c.FlatRate
}
