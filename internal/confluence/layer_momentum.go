package confluence

import (
	"github.com/markcheno/go-talib"
)

// momentumMinBars covers the slowest indicator warm-up (MACD 26+9).
const momentumMinBars = 35

// scoreMomentum grades oscillator state: RSI displacement from the midline,
// MACD histogram polarity and rate of change.
func scoreMomentum(in layerInput) (Layer, error) {
	if len(in.closes) < momentumMinBars {
		return Layer{}, errInsufficientCandles
	}
	score := 50.0
	details := map[string]float64{}

	rsi := talib.Rsi(in.closes, 14)
	if v, ok := lastValid(rsi); ok && v > 0 {
		adj := clamp((v-50)*0.6, -18, 18)
		score += adj
		details["rsi"] = v
		details["rsi_adj"] = adj
	}

	_, _, hist := talib.Macd(in.closes, 12, 26, 9)
	if v, ok := lastValid(hist); ok {
		var adj float64
		if v > 0 {
			adj = 8
		} else if v < 0 {
			adj = -8
		}
		score += adj
		details["macd_hist_adj"] = adj
	}

	roc := talib.Roc(in.closes, 9)
	if v, ok := lastValid(roc); ok {
		adj := clamp(v, -10, 10) * 0.8
		score += adj
		details["roc_adj"] = adj
	}

	return Layer{Score: score, Details: details}, nil
}
