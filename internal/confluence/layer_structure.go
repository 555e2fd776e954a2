package confluence

import (
	"github.com/markcheno/go-talib"
)

const (
	structureMinBars = 56 // EMA55 warm-up plus the live bar
	structureSwing   = 10
	// Above this ATR share of price the market is churn, not structure,
	// and the whole layer's conviction is reduced.
	structureATRDampPct = 5.0
)

// scoreStructure grades trend structure: EMA21/55 stacking and the balance
// of higher highs versus lower lows, dampened in high-volatility churn.
func scoreStructure(in layerInput) (Layer, error) {
	n := len(in.closes)
	if n < structureMinBars {
		return Layer{}, errInsufficientCandles
	}
	details := map[string]float64{}
	var adj float64

	ema21 := talib.Ema(in.closes, 21)
	ema55 := talib.Ema(in.closes, 55)
	fast, okFast := lastValid(ema21)
	slow, okSlow := lastValid(ema55)
	last := in.lastClose()
	if okFast && okSlow && fast > 0 && slow > 0 {
		var align float64
		switch {
		case last > fast && fast > slow:
			align = 18
		case last < fast && fast < slow:
			align = -18
		case last > fast:
			align = 9
		case last < fast:
			align = -9
		}
		adj += align
		details["ema_alignment"] = align
	}

	// Net swing balance over the last bars: more higher highs than lower
	// lows reads as an advancing structure.
	var hh, ll int
	for i := n - structureSwing; i < n; i++ {
		if i <= 0 {
			continue
		}
		if in.highs[i] > in.highs[i-1] {
			hh++
		}
		if in.lows[i] < in.lows[i-1] {
			ll++
		}
	}
	swingAdj := clamp(float64(hh-ll)*2.5, -10, 10)
	adj += swingAdj
	details["swing_net"] = float64(hh - ll)

	atr := talib.Atr(in.highs, in.lows, in.closes, 14)
	if v, ok := lastValid(atr); ok && last > 0 {
		atrPct := v / last * 100
		details["atr_pct"] = atrPct
		if atrPct > structureATRDampPct {
			adj *= 0.7
			details["damped"] = 1
		}
	}

	return Layer{Score: 50 + adj, Details: details}, nil
}
