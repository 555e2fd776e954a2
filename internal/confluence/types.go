package confluence

import (
	"riptide/internal/market"
)

// Signal is the directional call a layer or the aggregate makes.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Strength grades how strongly the layers agree.
type Strength string

const (
	StrengthStrong  Strength = "STRONG"
	StrengthWeak    Strength = "WEAK"
	StrengthNeutral Strength = "NEUTRAL"
)

// RiskLevel grades the dispersion / extremity of the aggregate.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Layer is one analyzer's contribution. Score is pre-clamped to [0,100];
// a degraded layer carries score 50, confidence 25, HOLD and is never omitted.
type Layer struct {
	Name       string             `json:"name"`
	Score      float64            `json:"score"`
	Signal     Signal             `json:"signal"`
	Confidence float64            `json:"confidence"`
	Weight     float64            `json:"weight"`
	Details    map[string]float64 `json:"details,omitempty"`
	Note       string             `json:"note,omitempty"`
}

// Analysis is the aggregate confluence output. Ephemeral, recomputed per request.
type Analysis struct {
	Symbol         string    `json:"symbol"`
	OverallScore   float64   `json:"overall_score"`
	Signal         Signal    `json:"signal"`
	Confluence     Strength  `json:"confluence"`
	LayersPassed   int       `json:"layers_passed"`
	Layers         []Layer   `json:"layers"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Recommendation string    `json:"recommendation"`
	Timeframe      string    `json:"timeframe"`
	Timestamp      int64     `json:"timestamp"`
}

// AnalysisRequest carries everything one symbol analysis needs. Candles and
// trades are supplied by the caller; the service never fetches market data
// for single-symbol analysis.
type AnalysisRequest struct {
	Symbol         string
	Timeframe      string
	Candles        []market.Candle
	Trades         []market.Trade
	IncludeDetails bool
}

// ScreenResult is one symbol's outcome inside a batch screen. A failed symbol
// keeps its slot with Error set and a neutral analysis; the batch never aborts.
type ScreenResult struct {
	Symbol   string   `json:"symbol"`
	Analysis Analysis `json:"analysis"`
	Error    string   `json:"error,omitempty"`
}

// ScreenSummary is the batch roll-up reported alongside the per-symbol
// results: signal distribution, failures, and the strongest mover.
type ScreenSummary struct {
	Total     int     `json:"total"`
	Buy       int     `json:"buy"`
	Sell      int     `json:"sell"`
	Hold      int     `json:"hold"`
	Strong    int     `json:"strong"`
	Failed    int     `json:"failed"`
	TopSymbol string  `json:"top_symbol,omitempty"`
	TopScore  float64 `json:"top_score,omitempty"`
}
