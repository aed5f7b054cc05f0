package utils

import "github.com/shopspring/decimal"

// Round rounds half away from zero to the given decimal places.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// Percentage returns part/total*100 rounded to places decimals, or 0 when total is 0.
func Percentage(part, total int, places int32) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(places).
		InexactFloat64()
}

// Average returns sum/count rounded to places decimals, or 0 when count is 0.
func Average(sum float64, count int, places int32) float64 {
	if count == 0 {
		return 0
	}
	return decimal.NewFromFloat(sum).
		Div(decimal.NewFromInt(int64(count))).
		Round(places).
		InexactFloat64()
}
