package orderflow

import (
	"math"
	"strings"
	"sync"

	"riptide/internal/market"
)

const (
	// 无成交回退时按 K 线方向拆分买卖量。这是对历史行为的建模近似，
	// 不是经验证的微结构规律，调整前先核对回测口径。
	fallbackBuyShareGreen = 0.60
	fallbackBuyShareRed   = 0.40

	absorptionMaxMovePct   = 0.5
	distributionMaxRatio   = 0.3
	distributionMinMovePct = 1.0
)

// Engine 维护每个 (symbol, timeframe) 的累计 delta 状态。
// 同一键上的写入串行化；不同键互不阻塞。
type Engine struct {
	mu    sync.Mutex
	state map[string]*accumulator
}

type accumulator struct {
	mu         sync.Mutex
	cumulative float64
}

func NewEngine() *Engine {
	return &Engine{state: make(map[string]*accumulator)}
}

func engineKey(symbol, timeframe string) string {
	return strings.ToUpper(strings.TrimSpace(symbol)) + "@" + market.NormalizeInterval(timeframe)
}

func (e *Engine) acc(symbol, timeframe string) *accumulator {
	key := engineKey(symbol, timeframe)
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.state[key]
	if !ok {
		a = &accumulator{}
		e.state[key] = a
	}
	return a
}

// DeltaBars 把 K 线与逐笔成交聚合成 delta 序列，累计值从上次调用的
// 末值继续，绝不在已有历史时从零重算。candles 需按时间升序。
func (e *Engine) DeltaBars(symbol, timeframe string, candles []market.Candle, trades []market.Trade) []VolumeDeltaBar {
	if e == nil || len(candles) == 0 {
		return nil
	}
	a := e.acc(symbol, timeframe)
	a.mu.Lock()
	defer a.mu.Unlock()
	bars := buildDeltaBars(candles, trades, market.IntervalMillis(timeframe), a.cumulative)
	if len(bars) > 0 {
		a.cumulative = bars[len(bars)-1].CumulativeDelta
	}
	return bars
}

// PreviewDeltaBars 与 DeltaBars 同样聚合，但不回写累计状态：
// 导出类的只读调用方用它，避免把累计值推进两次。
func (e *Engine) PreviewDeltaBars(symbol, timeframe string, candles []market.Candle, trades []market.Trade) []VolumeDeltaBar {
	if e == nil || len(candles) == 0 {
		return nil
	}
	a := e.acc(symbol, timeframe)
	a.mu.Lock()
	defer a.mu.Unlock()
	return buildDeltaBars(candles, trades, market.IntervalMillis(timeframe), a.cumulative)
}

// CumulativeDelta 返回当前存储的累计值，键不存在时为 0。
func (e *Engine) CumulativeDelta(symbol, timeframe string) float64 {
	if e == nil {
		return 0
	}
	key := engineKey(symbol, timeframe)
	e.mu.Lock()
	a, ok := e.state[key]
	e.mu.Unlock()
	if !ok {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cumulative
}

// Reset 丢弃单个时间框的累计状态。
func (e *Engine) Reset(symbol, timeframe string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	delete(e.state, engineKey(symbol, timeframe))
	e.mu.Unlock()
}

// ResetSymbol 丢弃某 symbol 全部时间框的累计状态（停止跟踪时调用）。
func (e *Engine) ResetSymbol(symbol string) {
	if e == nil {
		return
	}
	prefix := strings.ToUpper(strings.TrimSpace(symbol)) + "@"
	e.mu.Lock()
	for key := range e.state {
		if strings.HasPrefix(key, prefix) {
			delete(e.state, key)
		}
	}
	e.mu.Unlock()
}

// buildDeltaBars 是纯函数：相同 (candles, trades, intervalMs, seed) 必得相同结果。
func buildDeltaBars(candles []market.Candle, trades []market.Trade, intervalMs int64, seed float64) []VolumeDeltaBar {
	bars := make([]VolumeDeltaBar, 0, len(candles))
	cumulative := seed
	for _, c := range candles {
		winStart := c.OpenTime
		winEnd := c.OpenTime + intervalMs

		var buy, sell float64
		matched := false
		for _, t := range trades {
			if t.Timestamp < winStart || t.Timestamp >= winEnd {
				continue
			}
			matched = true
			if t.Side == market.TradeBuy {
				buy += t.Size
			} else {
				sell += t.Size
			}
		}
		if !matched {
			share := fallbackBuyShareRed
			if c.Green() {
				share = fallbackBuyShareGreen
			}
			buy = c.Volume * share
			sell = c.Volume * (1 - share)
		}

		total := buy + sell
		net := buy - sell
		cumulative += net

		ratio := 0.5
		if total > 0 {
			ratio = buy / total
		}
		movePct := math.Abs(c.ChangePercent())

		bars = append(bars, VolumeDeltaBar{
			Timestamp:       c.OpenTime,
			Price:           c.Close,
			BuyVolume:       buy,
			SellVolume:      sell,
			NetVolume:       net,
			TotalVolume:     total,
			CumulativeDelta: cumulative,
			AggressionRatio: ratio,
			IsAbsorption:    total > 0 && movePct < absorptionMaxMovePct,
			IsDistribution:  ratio < distributionMaxRatio && movePct > distributionMinMovePct,
		})
	}
	return bars
}
