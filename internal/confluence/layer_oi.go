package confluence

import (
	"errors"
	"math"
)

var errNoOpenInterest = errors.New("open interest unavailable")

// oiFlatPct: below this absolute change the OI series carries no signal.
const oiFlatPct = 1.0

// scoreOpenInterest grades the open-interest regime against price. Rising
// OI confirms the price move (new positioning); falling OI fades it
// (position unwind) at half strength.
func scoreOpenInterest(in layerInput) (Layer, error) {
	if len(in.oi) < 2 {
		return Layer{}, errNoOpenInterest
	}
	first := in.oi[0].SumOpenInterest
	latest := in.oi[len(in.oi)-1].SumOpenInterest
	if first <= 0 {
		return Layer{}, errNoOpenInterest
	}
	oiPct := pctChange(first, latest)

	n := len(in.closes)
	if n < 2 {
		return Layer{}, errInsufficientCandles
	}
	span := len(in.oi)
	if span > n-1 {
		span = n - 1
	}
	pricePct := pctChange(in.closes[n-1-span], in.closes[n-1])

	details := map[string]float64{
		"oi_change_pct":    oiPct,
		"price_change_pct": pricePct,
	}

	var adj float64
	absOI := math.Abs(oiPct)
	if absOI >= oiFlatPct {
		priceUp := pricePct >= 0
		switch {
		case oiPct > 0 && priceUp:
			// New longs pressing an advance.
			adj = clamp(absOI*3, 0, 30)
			details["regime"] = 1
		case oiPct > 0 && !priceUp:
			// New shorts pressing a decline.
			adj = -clamp(absOI*3, 0, 30)
			details["regime"] = -1
		case oiPct < 0 && priceUp:
			// Short covering: the rally burns fuel instead of adding it.
			adj = -clamp(absOI*1.5, 0, 15)
			details["regime"] = -0.5
		default:
			// Long liquidation: a washout that exhausts sellers.
			adj = clamp(absOI*1.5, 0, 15)
			details["regime"] = 0.5
		}
	} else {
		details["regime"] = 0
	}

	return Layer{Score: 50 + adj, Details: details}, nil
}
