package orderflow

import (
	"errors"
	"fmt"
	"strings"

	"riptide/internal/logger"
	"riptide/internal/market"
)

const (
	minCandles = 20
	minTrades  = 10
)

// ErrInsufficientData 表示 K 线或成交数据不足，属于硬失败，向调用方传播。
var ErrInsufficientData = errors.New("insufficient data")

// AnalyzerParams 汇集分析门面的依赖，零值字段会用默认实现补齐。
type AnalyzerParams struct {
	Engine  *Engine
	Tracker *PressureTracker
}

// Analyzer 把 delta 引擎与各检测器编排成单次完整分析。
// 引擎与压力历史由 Analyzer 独占持有，外部不应旁路修改。
type Analyzer struct {
	engine  *Engine
	tracker *PressureTracker
}

func NewAnalyzer(p AnalyzerParams) *Analyzer {
	if p.Engine == nil {
		p.Engine = NewEngine()
	}
	if p.Tracker == nil {
		p.Tracker = NewPressureTracker()
	}
	return &Analyzer{engine: p.Engine, tracker: p.Tracker}
}

// AnalyzeCVD 执行一次 (symbol, timeframe) 的完整订单流分析。
// candles 少于 20 根或 trades 少于 10 笔时返回 ErrInsufficientData；
// 其余输入缺陷（缺口、乱序）只记日志并降级，不中断分析。
func (a *Analyzer) AnalyzeCVD(symbol string, candles []market.Candle, trades []market.Trade, timeframe string) (*CVDAnalysis, error) {
	if a == nil {
		return nil, fmt.Errorf("analyzer not initialized")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	timeframe = market.NormalizeInterval(timeframe)
	if len(candles) < minCandles {
		return nil, fmt.Errorf("%w: need %d candles, got %d", ErrInsufficientData, minCandles, len(candles))
	}
	if len(trades) < minTrades {
		return nil, fmt.Errorf("%w: need %d trades, got %d", ErrInsufficientData, minTrades, len(trades))
	}

	if rep := market.CheckSeries(candles, timeframe); !rep.Complete() {
		logger.Warnf("[orderflow] %s %s K 线序列异常: 缺口=%d 重复=%d 乱序=%d",
			symbol, timeframe, len(rep.Gaps), rep.Duplicates, rep.OutOfOrder)
	}

	bars := a.engine.DeltaBars(symbol, timeframe, candles, trades)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no delta bars built", ErrInsufficientData)
	}

	divergences := DetectDivergences(candles, bars)
	absorption := DetectAbsorption(bars, candles)
	flow := AnalyzeFlow(bars, candles)
	smart := DetectSmartMoney(bars, candles, flow, absorption, timeframe)

	a.tracker.Record(symbol, timeframe, BuildPressurePoint(bars, smart, absorption))
	pressure := a.tracker.Analyze(symbol, timeframe)

	snapshot, _ := ComputeSnapshot(bars)

	return &CVDAnalysis{
		Symbol:      symbol,
		Timeframe:   timeframe,
		Bars:        bars,
		Divergences: divergences,
		Absorption:  absorption,
		Flow:        flow,
		SmartMoney:  smart,
		Pressure:    pressure,
		Snapshot:    snapshot,
		Timestamp:   bars[len(bars)-1].Timestamp,
	}, nil
}

// PreviewBars 只做 delta 聚合且不推进累计状态，供导出等只读场景使用。
// 不设最低成交笔数：成交稀疏的窗口按回退拆分导出，仍然成立。
func (a *Analyzer) PreviewBars(symbol string, candles []market.Candle, trades []market.Trade, timeframe string) ([]VolumeDeltaBar, error) {
	if a == nil {
		return nil, fmt.Errorf("analyzer not initialized")
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	timeframe = market.NormalizeInterval(timeframe)
	if len(candles) < minCandles {
		return nil, fmt.Errorf("%w: need %d candles, got %d", ErrInsufficientData, minCandles, len(candles))
	}
	bars := a.engine.PreviewDeltaBars(symbol, timeframe, candles, trades)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no delta bars built", ErrInsufficientData)
	}
	return bars, nil
}

// PressureTrend 返回指定时间框的压力历史分析。
func (a *Analyzer) PressureTrend(symbol, timeframe string) PressureTrend {
	if a == nil {
		return PressureTrend{Direction: "neutral"}
	}
	return a.tracker.Analyze(symbol, timeframe)
}

// PressureHistory 返回指定时间框的压力历史副本。
func (a *Analyzer) PressureHistory(symbol, timeframe string) []PressureHistoryPoint {
	if a == nil {
		return nil
	}
	return a.tracker.History(symbol, timeframe)
}

// CumulativeDelta 返回当前存储的累计 delta，供状态检查。
func (a *Analyzer) CumulativeDelta(symbol, timeframe string) float64 {
	if a == nil {
		return 0
	}
	return a.engine.CumulativeDelta(symbol, timeframe)
}

// StopTracking 清理某 symbol 的全部累计与压力状态（不再跟踪时调用）。
func (a *Analyzer) StopTracking(symbol string) {
	if a == nil {
		return
	}
	a.engine.ResetSymbol(symbol)
	a.tracker.ResetSymbol(symbol)
}
