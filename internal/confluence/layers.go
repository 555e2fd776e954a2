// Package confluence aggregates independent analysis layers into one
// weighted score and directional signal per symbol.
package confluence

import (
	"fmt"
	"math"

	"riptide/internal/logger"
	"riptide/internal/market"
	"riptide/internal/orderflow"
)

// Layer names, in report order.
const (
	LayerSMC       = "smc"
	LayerCVD       = "cvd"
	LayerMomentum  = "momentum"
	LayerStructure = "structure"
	LayerOI        = "open_interest"
	LayerFunding   = "funding"
	LayerInstFlow  = "institutional_flow"
	LayerFibonacci = "fibonacci"
)

// Layer weights. They must sum to 1.0 so the weighted average of layer
// scores stays inside [0,100] without renormalization.
const (
	weightSMC       = 0.20
	weightCVD       = 0.15
	weightMomentum  = 0.15
	weightStructure = 0.10
	weightOI        = 0.15
	weightFunding   = 0.10
	weightInstFlow  = 0.10
	weightFibonacci = 0.05
)

// layerOrder fixes the roster: every analysis reports exactly these layers
// in exactly this order, degraded or not.
var layerOrder = []string{
	LayerSMC,
	LayerCVD,
	LayerMomentum,
	LayerStructure,
	LayerOI,
	LayerFunding,
	LayerInstFlow,
	LayerFibonacci,
}

var layerWeights = map[string]float64{
	LayerSMC:       weightSMC,
	LayerCVD:       weightCVD,
	LayerMomentum:  weightMomentum,
	LayerStructure: weightStructure,
	LayerOI:        weightOI,
	LayerFunding:   weightFunding,
	LayerInstFlow:  weightInstFlow,
	LayerFibonacci: weightFibonacci,
}

// Weight returns the fixed weight for a layer name, 0 for unknown names.
func Weight(name string) float64 { return layerWeights[name] }

// LayerNames returns the fixed roster in report order.
func LayerNames() []string {
	out := make([]string, len(layerOrder))
	copy(out, layerOrder)
	return out
}

// FallbackLayer is the neutral placeholder for a layer that could not be
// computed. It keeps the roster stable: score 50, confidence 25, HOLD.
func FallbackLayer(name, note string) Layer {
	return Layer{
		Name:       name,
		Score:      50,
		Signal:     SignalHold,
		Confidence: 25,
		Weight:     layerWeights[name],
		Note:       note,
	}
}

// layerInput bundles everything the scoring functions may consume. Optional
// inputs are nil when the corresponding fetch failed; each layer degrades
// on its own rather than failing the analysis.
type layerInput struct {
	symbol    string
	timeframe string
	candles   []market.Candle
	closes    []float64
	highs     []float64
	lows      []float64
	volumes   []float64
	cvd       *orderflow.CVDAnalysis
	funding   *market.FundingRate
	oi        []market.OpenInterestPoint
}

func newLayerInput(symbol, timeframe string, candles []market.Candle) layerInput {
	in := layerInput{
		symbol:    symbol,
		timeframe: timeframe,
		candles:   candles,
		closes:    make([]float64, 0, len(candles)),
		highs:     make([]float64, 0, len(candles)),
		lows:      make([]float64, 0, len(candles)),
		volumes:   make([]float64, 0, len(candles)),
	}
	for _, c := range candles {
		in.closes = append(in.closes, c.Close)
		in.highs = append(in.highs, c.High)
		in.lows = append(in.lows, c.Low)
		in.volumes = append(in.volumes, c.Volume)
	}
	return in
}

func (in layerInput) lastClose() float64 {
	if len(in.closes) == 0 {
		return 0
	}
	return in.closes[len(in.closes)-1]
}

// layerFunc computes one layer from the shared input. Returning an error
// degrades that layer to the neutral fallback without touching the others.
type layerFunc func(in layerInput) (Layer, error)

var layerFuncs = map[string]layerFunc{
	LayerSMC:       scoreSMC,
	LayerCVD:       scoreCVD,
	LayerMomentum:  scoreMomentum,
	LayerStructure: scoreStructure,
	LayerOI:        scoreOpenInterest,
	LayerFunding:   scoreFunding,
	LayerInstFlow:  scoreInstitutionalFlow,
	LayerFibonacci: scoreFibonacci,
}

func runLayer(name string, in layerInput) Layer {
	fn, ok := layerFuncs[name]
	if !ok {
		return FallbackLayer(name, "unknown layer")
	}
	return safeLayer(name, fn, in)
}

// safeLayer executes one layer and converts errors and panics into the
// neutral fallback. A single broken layer must never take down an analysis.
func safeLayer(name string, fn layerFunc, in layerInput) (out Layer) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("confluence: layer %s panicked for %s: %v", name, in.symbol, r)
			out = FallbackLayer(name, fmt.Sprintf("panic: %v", r))
		}
	}()
	layer, err := fn(in)
	if err != nil {
		logger.Debugf("confluence: layer %s degraded for %s: %v", name, in.symbol, err)
		return FallbackLayer(name, err.Error())
	}
	layer.Name = name
	layer.Weight = layerWeights[name]
	layer.Score = clamp(layer.Score, 0, 100)
	if layer.Signal == "" {
		layer.Signal = signalFor(layer.Score)
	}
	if layer.Confidence == 0 {
		layer.Confidence = confidenceFor(layer.Score)
	}
	return layer
}

// computeLayers runs the full roster against one input.
func computeLayers(in layerInput) []Layer {
	out := make([]Layer, 0, len(layerOrder))
	for _, name := range layerOrder {
		out = append(out, runLayer(name, in))
	}
	return out
}

// signalFor maps a score to a direction with a dead zone around the
// midpoint: above 60 buy, below 40 sell, otherwise hold.
func signalFor(score float64) Signal {
	switch {
	case score > 60:
		return SignalBuy
	case score < 40:
		return SignalSell
	default:
		return SignalHold
	}
}

// confidenceFor derives confidence from distance to the neutral midpoint.
// A dead-center 50 yields 40; the scale saturates at 95 near the extremes.
func confidenceFor(score float64) float64 {
	return clamp(40+math.Abs(score-50)*1.2, 25, 95)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// lastValid scans backwards for the newest finite value.
func lastValid(series []float64) (float64, bool) {
	for i := len(series) - 1; i >= 0; i-- {
		v := series[i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		return v, true
	}
	return 0, false
}

// pctChange returns the percentage change from a to b, 0 when a is 0.
func pctChange(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	return (b - a) / a * 100
}
