package confluence

import (
	"math"
)

// Aggregation thresholds.
const (
	scoreStrongBuy  = 75.0
	scoreStrongSell = 25.0
	scoreWeakBuy    = 60.0
	scoreWeakSell   = 40.0

	riskVarianceHigh   = 400.0
	riskVarianceMedium = 200.0
)

// Aggregate folds a full layer roster into one analysis. The overall score
// is the weight-normalized average, so it inherits the [0,100] bounds of
// the layer scores regardless of how many layers degraded.
func Aggregate(symbol, timeframe string, layers []Layer, timestamp int64) Analysis {
	var weighted, totalWeight float64
	for _, l := range layers {
		weighted += l.Score * l.Weight
		totalWeight += l.Weight
	}
	overall := 50.0
	if totalWeight > 0 {
		overall = weighted / totalWeight
	}

	signal := signalVote(overall, layers)
	strength := strengthFor(overall)
	risk := riskFor(overall, layers)

	passed := 0
	for _, l := range layers {
		if l.Score > scoreWeakBuy {
			passed++
		}
	}

	return Analysis{
		Symbol:         symbol,
		OverallScore:   round2(overall),
		Signal:         signal,
		Confluence:     strength,
		LayersPassed:   passed,
		Layers:         layers,
		RiskLevel:      risk,
		Recommendation: recommendationFor(signal, strength, risk),
		Timeframe:      timeframe,
		Timestamp:      timestamp,
	}
}

// NeutralAnalysis is the whole-pipeline fallback: every layer neutral, HOLD.
// It keeps the response shape identical to a successful analysis.
func NeutralAnalysis(symbol, timeframe, note string, timestamp int64) Analysis {
	layers := make([]Layer, 0, len(layerOrder))
	for _, name := range layerOrder {
		layers = append(layers, FallbackLayer(name, note))
	}
	return Aggregate(symbol, timeframe, layers, timestamp)
}

// signalVote resolves direction. An extreme overall score decides outright;
// otherwise the layers vote, each weighted by how far it strayed from
// neutral. Layers sitting in the hold band abstain.
func signalVote(overall float64, layers []Layer) Signal {
	switch {
	case overall >= scoreStrongBuy:
		return SignalBuy
	case overall <= scoreStrongSell:
		return SignalSell
	}
	var buy, sell float64
	for _, l := range layers {
		vote := l.Weight * math.Abs(l.Score-50)
		switch l.Signal {
		case SignalBuy:
			buy += vote
		case SignalSell:
			sell += vote
		}
	}
	switch {
	case buy > sell:
		return SignalBuy
	case sell > buy:
		return SignalSell
	default:
		return SignalHold
	}
}

func strengthFor(overall float64) Strength {
	switch {
	case overall >= scoreStrongBuy || overall <= scoreStrongSell:
		return StrengthStrong
	case overall >= scoreWeakBuy || overall <= scoreWeakSell:
		return StrengthWeak
	default:
		return StrengthNeutral
	}
}

// riskFor grades risk from layer disagreement (score variance) and from
// overall extremity. Widely scattered layers mean the score is an average
// of contradictions, not a consensus.
func riskFor(overall float64, layers []Layer) RiskLevel {
	if len(layers) == 0 {
		return RiskLow
	}
	var m float64
	for _, l := range layers {
		m += l.Score
	}
	m /= float64(len(layers))
	var v float64
	for _, l := range layers {
		v += (l.Score - m) * (l.Score - m)
	}
	v /= float64(len(layers))

	switch {
	case v > riskVarianceHigh || overall > 90 || overall < 10:
		return RiskHigh
	case v > riskVarianceMedium || overall > 80 || overall < 20:
		return RiskMedium
	default:
		return RiskLow
	}
}

func recommendationFor(signal Signal, strength Strength, risk RiskLevel) string {
	switch {
	case signal == SignalBuy && strength == StrengthStrong:
		return "strong_buy"
	case signal == SignalBuy:
		return "buy"
	case signal == SignalSell && strength == StrengthStrong:
		return "strong_sell"
	case signal == SignalSell:
		return "sell"
	case risk == RiskHigh:
		return "stand_aside"
	default:
		return "wait"
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
