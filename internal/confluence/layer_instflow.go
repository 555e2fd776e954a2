package confluence

import (
	"github.com/markcheno/go-talib"
)

const (
	instFlowMinBars = 21
	instFlowSpan    = 10
)

// scoreInstitutionalFlow grades where the volume is pointing: OBV direction
// against price direction, volume surges, and the large-bar footprint from
// the order-flow pass when one is available.
func scoreInstitutionalFlow(in layerInput) (Layer, error) {
	n := len(in.closes)
	if n < instFlowMinBars {
		return Layer{}, errInsufficientCandles
	}
	details := map[string]float64{}

	obv := talib.Obv(in.closes, in.volumes)
	obvDelta := obv[n-1] - obv[n-1-instFlowSpan]
	priceDelta := in.closes[n-1] - in.closes[n-1-instFlowSpan]
	details["obv_delta"] = obvDelta
	details["price_delta"] = priceDelta

	// OBV agreeing with price confirms the move; OBV fighting price is the
	// interesting case, read as hidden accumulation or distribution.
	var adj float64
	switch {
	case obvDelta > 0 && priceDelta >= 0:
		adj = 16
	case obvDelta > 0 && priceDelta < 0:
		adj = 8
	case obvDelta < 0 && priceDelta <= 0:
		adj = -16
	case obvDelta < 0 && priceDelta > 0:
		adj = -8
	}
	details["base"] = adj

	volSMA := talib.Sma(in.volumes, 20)
	if avg, ok := lastValid(volSMA); ok && avg > 0 {
		if in.volumes[n-1] > 1.5*avg {
			adj *= 1.25
			details["surge"] = 1
		}
	}

	if in.cvd != nil && in.cvd.Flow.InstitutionalFootprint.Detected {
		fp := 6.0
		if in.cvd.Flow.CVDChange < 0 {
			fp = -6
		}
		adj += fp
		details["footprint"] = fp
	}

	return Layer{Score: 50 + clamp(adj, -30, 30), Details: details}, nil
}
