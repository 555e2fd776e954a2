package confluence

import (
	"errors"

	"riptide/internal/orderflow"
)

var errNoOrderflow = errors.New("orderflow analysis unavailable")

// scoreCVD grades the order-flow picture: flow trend, active divergences,
// absorption zones and smart-money signals, dampened when manipulation
// risk is high.
func scoreCVD(in layerInput) (Layer, error) {
	if in.cvd == nil {
		return Layer{}, errNoOrderflow
	}
	cvd := in.cvd
	score := 50.0
	details := map[string]float64{}

	var flowAdj float64
	switch cvd.Flow.Trend {
	case orderflow.FlowAccumulation:
		flowAdj = 12 * flowStrengthFactor(cvd.Flow.Strength)
	case orderflow.FlowDistribution:
		flowAdj = -12 * flowStrengthFactor(cvd.Flow.Strength)
	}
	score += flowAdj
	details["flow"] = flowAdj

	// Only active divergences vote; recent ones are context, not signal.
	var divAdj float64
	for _, d := range cvd.Divergences.Active {
		if d.Type == orderflow.DivergenceBullish {
			divAdj += 8
		} else {
			divAdj -= 8
		}
	}
	divAdj = clamp(divAdj, -16, 16)
	score += divAdj
	details["divergence"] = divAdj

	var absAdj float64
	for _, p := range cvd.Absorption {
		switch p.Type {
		case orderflow.AbsorptionBuy:
			absAdj += 5
		case orderflow.AbsorptionSell:
			absAdj -= 5
		}
	}
	absAdj = clamp(absAdj, -10, 10)
	score += absAdj
	details["absorption"] = absAdj

	var smAdj float64
	if cvd.SmartMoney.Accumulation.Detected {
		smAdj += 10
	}
	if cvd.SmartMoney.Distribution.Detected {
		smAdj -= 10
	}
	score += smAdj
	details["smart_money"] = smAdj

	// High manipulation risk halves the conviction in either direction:
	// the flow reads may themselves be the manipulation.
	if cvd.SmartMoney.Manipulation.RiskLevel == orderflow.RiskHigh {
		score = 50 + (score-50)*0.5
		details["manipulation_damp"] = 1
	}

	return Layer{Score: score, Details: details}, nil
}

func flowStrengthFactor(s orderflow.FlowStrength) float64 {
	switch s {
	case orderflow.FlowStrong:
		return 1
	case orderflow.FlowModerate:
		return 0.75
	default:
		return 0.5
	}
}
