package convert

import (
	"github.com/shopspring/decimal"
)

// RoundFloat64 rounds half away from zero on the decimal value, so 0.45555
// becomes 0.4556 where float arithmetic would give 0.4555.
func RoundFloat64(number float64, decimals int) float64 {
	return decimal.NewFromFloat(number).Round(int32(decimals)).InexactFloat64()
}
