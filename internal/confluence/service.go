package confluence

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"riptide/internal/logger"
	"riptide/internal/market"
	"riptide/internal/orderflow"
)

const (
	defaultFetchTimeout      = 10 * time.Second
	defaultCandleLimit       = 200
	defaultTradeLimit        = 1000
	defaultScreenParallelism = 4

	oiHistoryLimit = 24
)

// ServiceParams configures a confluence Service. Zero values fall back to
// defaults; Derivatives may be nil, in which case the funding and open
// interest layers always degrade.
type ServiceParams struct {
	Analyzer          *orderflow.Analyzer
	Source            market.Source
	Derivatives       market.DerivativesProvider
	FetchTimeout      time.Duration
	CandleLimit       int
	TradeLimit        int
	ScreenParallelism int
}

// Service computes confluence analyses. Safe for concurrent use.
type Service struct {
	analyzer    *orderflow.Analyzer
	source      market.Source
	derivatives market.DerivativesProvider

	fetchTimeout time.Duration
	candleLimit  int
	tradeLimit   int
	parallelism  int
}

func NewService(p ServiceParams) *Service {
	if p.FetchTimeout <= 0 {
		p.FetchTimeout = defaultFetchTimeout
	}
	if p.CandleLimit <= 0 {
		p.CandleLimit = defaultCandleLimit
	}
	if p.TradeLimit <= 0 {
		p.TradeLimit = defaultTradeLimit
	}
	if p.ScreenParallelism <= 0 {
		p.ScreenParallelism = defaultScreenParallelism
	}
	return &Service{
		analyzer:     p.Analyzer,
		source:       p.Source,
		derivatives:  p.Derivatives,
		fetchTimeout: p.FetchTimeout,
		candleLimit:  p.CandleLimit,
		tradeLimit:   p.TradeLimit,
		parallelism:  p.ScreenParallelism,
	}
}

// AnalyzeSymbol runs the full layer roster over caller-supplied market data.
// It never returns an error: any failure degrades the affected layers, and
// a whole-pipeline failure yields the all-neutral analysis.
func (s *Service) AnalyzeSymbol(ctx context.Context, req AnalysisRequest) (out Analysis) {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	timeframe := market.NormalizeInterval(req.Timeframe)
	timestamp := time.Now().UnixMilli()
	if n := len(req.Candles); n > 0 {
		timestamp = req.Candles[n-1].OpenTime
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("confluence: analysis panicked for %s: %v", symbol, r)
			out = NeutralAnalysis(symbol, timeframe, "analysis failed", timestamp)
		}
	}()

	if symbol == "" {
		return NeutralAnalysis(symbol, timeframe, "empty symbol", timestamp)
	}
	if len(req.Candles) == 0 {
		return NeutralAnalysis(symbol, timeframe, "no candles", timestamp)
	}

	in := newLayerInput(symbol, timeframe, req.Candles)
	in.funding, in.oi = s.fetchDerivatives(ctx, symbol, timeframe)

	if s.analyzer != nil {
		cvd, err := s.analyzer.AnalyzeCVD(symbol, req.Candles, req.Trades, timeframe)
		if err != nil {
			logger.Debugf("confluence: orderflow degraded for %s: %v", symbol, err)
		} else {
			in.cvd = cvd
		}
	}

	layers := computeLayers(in)
	if !req.IncludeDetails {
		for i := range layers {
			layers[i].Details = nil
		}
	}
	return Aggregate(symbol, timeframe, layers, timestamp)
}

// fetchDerivatives pulls funding and open interest concurrently. Each fetch
// fails on its own: a missing result degrades only the layer that needs it.
func (s *Service) fetchDerivatives(ctx context.Context, symbol, timeframe string) (*market.FundingRate, []market.OpenInterestPoint) {
	if s.derivatives == nil {
		return nil, nil
	}
	var (
		funding *market.FundingRate
		oi      []market.OpenInterestPoint
	)
	var g errgroup.Group
	g.Go(func() error {
		fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
		fr, err := s.derivatives.GetFundingRate(fctx, symbol)
		if err != nil {
			logger.Debugf("confluence: funding fetch failed for %s: %v", symbol, err)
			return nil
		}
		funding = &fr
		return nil
	})
	g.Go(func() error {
		octx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
		points, err := s.derivatives.GetOpenInterestHistory(octx, symbol, oiPeriodFor(timeframe), oiHistoryLimit)
		if err != nil {
			logger.Debugf("confluence: open interest fetch failed for %s: %v", symbol, err)
			return nil
		}
		oi = points
		return nil
	})
	g.Wait()
	return funding, oi
}

// ScreenMultipleSymbols analyzes a batch concurrently. Every symbol keeps
// its slot in the result; per-symbol failures degrade in place and never
// abort the batch.
func (s *Service) ScreenMultipleSymbols(ctx context.Context, symbols []string, timeframe string) []ScreenResult {
	results := make([]ScreenResult, len(symbols))
	tf := market.NormalizeInterval(timeframe)

	var g errgroup.Group
	g.SetLimit(s.parallelism)
	for i, raw := range symbols {
		i, symbol := i, strings.ToUpper(strings.TrimSpace(raw))
		g.Go(func() error {
			results[i] = s.screenOne(ctx, symbol, tf)
			return nil
		})
	}
	g.Wait()
	return results
}

// AnalyzeMarket fetches one symbol's market data through the configured
// source and runs the full analysis. The returned Analysis is always usable:
// fetch failures come back as a neutral analysis plus the error.
func (s *Service) AnalyzeMarket(ctx context.Context, symbol, timeframe string, includeDetails bool) (Analysis, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	timeframe = market.NormalizeInterval(timeframe)
	now := time.Now().UnixMilli()
	if s.source == nil {
		return NeutralAnalysis(symbol, timeframe, "no market source", now), errors.New("no market source")
	}

	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	candles, err := s.source.FetchHistory(fctx, symbol, timeframe, s.candleLimit)
	if err != nil {
		logger.Warnf("confluence: history fetch failed for %s: %v", symbol, err)
		return NeutralAnalysis(symbol, timeframe, "history fetch failed", now), err
	}

	tctx, cancel2 := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel2()
	trades, err := s.source.FetchRecentTrades(tctx, symbol, s.tradeLimit)
	if err != nil {
		// Trades only feed the order-flow layer; the rest still works.
		logger.Debugf("confluence: trade fetch failed for %s: %v", symbol, err)
		trades = nil
	}

	return s.AnalyzeSymbol(ctx, AnalysisRequest{
		Symbol:         symbol,
		Timeframe:      timeframe,
		Candles:        candles,
		Trades:         trades,
		IncludeDetails: includeDetails,
	}), nil
}

func (s *Service) screenOne(ctx context.Context, symbol, timeframe string) ScreenResult {
	analysis, err := s.AnalyzeMarket(ctx, symbol, timeframe, false)
	res := ScreenResult{Symbol: symbol, Analysis: analysis}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// Summarize folds a batch of screen results into the roll-up reported next to
// them. The top symbol is the one whose score sits furthest from neutral 50,
// failed symbols excluded.
func Summarize(results []ScreenResult) ScreenSummary {
	sum := ScreenSummary{Total: len(results)}
	topDist := -1.0
	for _, r := range results {
		if r.Error != "" {
			sum.Failed++
		}
		switch r.Analysis.Signal {
		case SignalBuy:
			sum.Buy++
		case SignalSell:
			sum.Sell++
		default:
			sum.Hold++
		}
		if r.Analysis.Confluence == StrengthStrong {
			sum.Strong++
		}
		if r.Error != "" {
			continue
		}
		if dist := math.Abs(r.Analysis.OverallScore - 50); dist > topDist {
			topDist = dist
			sum.TopSymbol = r.Symbol
			sum.TopScore = r.Analysis.OverallScore
		}
	}
	return sum
}

// oiPeriodFor maps a candle interval to the nearest supported open-interest
// statistics period.
func oiPeriodFor(timeframe string) string {
	switch timeframe {
	case "1m", "5m":
		return "5m"
	case "15m":
		return "15m"
	case "1h":
		return "1h"
	case "4h":
		return "4h"
	case "1d":
		return "1d"
	default:
		return "1h"
	}
}
