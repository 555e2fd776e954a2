package confluence

import (
	"errors"
	"math"
)

var errNoFunding = errors.New("funding rate unavailable")

// Funding steps, in rate decimals (0.0001 = one basis point per interval).
// Read contrarian: the more crowded the paying side, the harder this layer
// leans against it.
const (
	fundingMild    = 0.0001
	fundingElev    = 0.0005
	fundingExtreme = 0.001
)

// scoreFunding grades positioning crowding from the perpetual funding rate.
func scoreFunding(in layerInput) (Layer, error) {
	if in.funding == nil {
		return Layer{}, errNoFunding
	}
	rate := in.funding.Rate

	var step float64
	switch abs := math.Abs(rate); {
	case abs >= fundingExtreme:
		step = 35
	case abs >= fundingElev:
		step = 20
	case abs >= fundingMild:
		step = 8
	}

	adj := step
	if rate > 0 {
		adj = -step
	}

	return Layer{
		Score: 50 + adj,
		Details: map[string]float64{
			"rate":     rate,
			"rate_bps": rate * 10000,
			"adj":      adj,
		},
	}, nil
}
