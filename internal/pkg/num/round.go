package num

import "math"

// RoundTo rounds a number to the given decimal places (half away from zero).
func RoundTo(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(v)
	}
	factor := math.Pow10(decimals)
	return math.Round(v*factor) / factor
}

// PriceDecimals picks a display precision from the price magnitude:
// large prices need few decimals, sub-unit prices need many.
func PriceDecimals(price float64) int {
	abs := math.Abs(price)
	switch {
	case abs >= 1000:
		return 1
	case abs >= 100:
		return 2
	case abs >= 1:
		return 4
	default:
		return 6
	}
}

// RoundPrice rounds a price using PriceDecimals.
func RoundPrice(price float64) float64 {
	return RoundTo(price, PriceDecimals(price))
}
