package confluence

import (
	"errors"
	"math"
)

var errFlatRange = errors.New("flat price range")

const (
	fibLookback = 100
	// A close within this share of the range width counts as sitting on
	// a retracement level.
	fibProximity = 0.03
)

var fibLevels = []float64{0.236, 0.382, 0.5, 0.618, 0.786}

// scoreFibonacci grades where price sits inside its recent range: deep
// retracements score bullish, extended ones bearish, with a bonus when the
// live candle is reacting off a retracement level.
func scoreFibonacci(in layerInput) (Layer, error) {
	n := len(in.candles)
	if n < 2 {
		return Layer{}, errInsufficientCandles
	}
	start := 0
	if n > fibLookback {
		start = n - fibLookback
	}

	hi := in.highs[start]
	lo := in.lows[start]
	for i := start + 1; i < n; i++ {
		if in.highs[i] > hi {
			hi = in.highs[i]
		}
		if in.lows[i] < lo {
			lo = in.lows[i]
		}
	}
	width := hi - lo
	if width <= 0 {
		return Layer{}, errFlatRange
	}

	last := in.candles[n-1]
	pos := clamp((last.Close-lo)/width, 0, 1)
	score := 30 + (1-pos)*40

	details := map[string]float64{
		"range_high": hi,
		"range_low":  lo,
		"position":   pos,
	}

	// Reaction off the nearest retracement level: a green close on the
	// level reads as defended support, a red close as rejection.
	for _, l := range fibLevels {
		level := lo + width*l
		if math.Abs(last.Close-level)/width > fibProximity {
			continue
		}
		details["nearest_level"] = l
		if last.Green() {
			score += 10
			details["bounce"] = 1
		} else if last.Close < last.Open {
			score -= 10
			details["bounce"] = -1
		}
		break
	}

	return Layer{Score: score, Details: details}, nil
}
