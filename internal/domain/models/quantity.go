package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// QuantityPlaces is the number of decimal places kept after every arithmetic step.
const QuantityPlaces = 2

// Round2 rounds half away from zero to two decimal places. Quantities and prices
// are never negative, so this is round-half-up for every value the engine sees.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(QuantityPlaces)
}

// ParseQuantity converts the legacy string wire format into a decimal. The
// second return value is false when the input could not be parsed, in which
// case the quantity is zero.
func ParseQuantity(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// FormatQuantity renders a quantity in the legacy string wire format.
func FormatQuantity(d decimal.Decimal) string {
	return Round2(d).StringFixed(QuantityPlaces)
}
