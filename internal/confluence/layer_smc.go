package confluence

import (
	"errors"

	"github.com/markcheno/go-talib"
)

// smcLookback is the structure window: the high/low of the previous
// smcLookback bars (excluding the live bar) defines the tradable range.
const smcLookback = 20

var errInsufficientCandles = errors.New("insufficient candles")

// scoreSMC grades price against market structure: break of structure,
// premium/discount positioning, trend bias and liquidity sweeps.
func scoreSMC(in layerInput) (Layer, error) {
	n := len(in.candles)
	if n < smcLookback+1 {
		return Layer{}, errInsufficientCandles
	}

	rangeHigh := in.highs[n-smcLookback-1]
	rangeLow := in.lows[n-smcLookback-1]
	for i := n - smcLookback; i < n-1; i++ {
		if in.highs[i] > rangeHigh {
			rangeHigh = in.highs[i]
		}
		if in.lows[i] < rangeLow {
			rangeLow = in.lows[i]
		}
	}

	last := in.candles[n-1]
	score := 50.0
	details := map[string]float64{}

	// Break of structure: closing beyond the prior range is the strongest
	// single piece of evidence this layer has.
	switch {
	case last.Close > rangeHigh:
		score += 20
		details["bos"] = 1
	case last.Close < rangeLow:
		score -= 20
		details["bos"] = -1
	default:
		details["bos"] = 0
	}

	// Premium/discount: longs are favored below equilibrium, shorts above.
	if width := rangeHigh - rangeLow; width > 0 {
		pos := (last.Close - rangeLow) / width
		details["equilibrium_position"] = pos
		switch {
		case pos <= 0.45:
			score += 10
		case pos >= 0.55:
			score -= 10
		}
	}

	// Trend bias from EMA50 when enough history exists.
	if n >= 50 {
		ema := talib.Ema(in.closes, 50)
		if v, ok := lastValid(ema); ok && v > 0 {
			if last.Close > v {
				score += 10
				details["ema50_bias"] = 1
			} else if last.Close < v {
				score -= 10
				details["ema50_bias"] = -1
			}
		}
	}

	// Liquidity sweep: a wick through the range extreme that closes back
	// inside means resting stops were taken and the move rejected.
	switch {
	case last.Low < rangeLow && last.Close > rangeLow:
		score += 10
		details["sweep"] = 1
	case last.High > rangeHigh && last.Close < rangeHigh:
		score -= 10
		details["sweep"] = -1
	default:
		details["sweep"] = 0
	}

	return Layer{Score: score, Details: details}, nil
}
