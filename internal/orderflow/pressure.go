package orderflow

import (
	"strings"
	"sync"

	"riptide/internal/market"
	"riptide/internal/pkg/num"
)

const (
	pressureWindowBars  = 5
	pressureManipLevel  = 70.0
	pressureTrendDelta  = 5.0
	pressureKeep1h      = 24
	pressureKeep15m     = 96
	pressureKeepDefault = 48
)

// PressureTracker 按 (symbol, timeframe) 维护有界的压力历史。
// 追加后裁剪到保留上限，最旧的先淘汰。
type PressureTracker struct {
	mu      sync.RWMutex
	history map[string][]PressureHistoryPoint
}

func NewPressureTracker() *PressureTracker {
	return &PressureTracker{history: make(map[string][]PressureHistoryPoint)}
}

func pressureRetention(timeframe string) int {
	switch market.NormalizeInterval(timeframe) {
	case "1h":
		return pressureKeep1h
	case "15m":
		return pressureKeep15m
	default:
		return pressureKeepDefault
	}
}

// Record 追加一条压力记录并裁剪到保留上限。
func (t *PressureTracker) Record(symbol, timeframe string, point PressureHistoryPoint) {
	if t == nil {
		return
	}
	key := engineKey(symbol, timeframe)
	max := pressureRetention(timeframe)
	t.mu.Lock()
	defer t.mu.Unlock()
	arr := append(t.history[key], point)
	if len(arr) > max {
		arr = arr[len(arr)-max:]
	}
	t.history[key] = arr
}

// History 返回历史副本，调用方可安全修改。
func (t *PressureTracker) History(symbol, timeframe string) []PressureHistoryPoint {
	if t == nil {
		return nil
	}
	key := engineKey(symbol, timeframe)
	t.mu.RLock()
	defer t.mu.RUnlock()
	arr := t.history[key]
	if len(arr) == 0 {
		return nil
	}
	out := make([]PressureHistoryPoint, len(arr))
	copy(out, arr)
	return out
}

// Analyze 在读取侧推导压力趋势、操纵事件与吸收价位。
func (t *PressureTracker) Analyze(symbol, timeframe string) PressureTrend {
	trend := PressureTrend{Direction: "neutral"}
	points := t.History(symbol, timeframe)
	if len(points) == 0 {
		return trend
	}
	trend.Points = len(points)
	trend.Delta = points[len(points)-1].BuyPressure - points[0].BuyPressure
	switch {
	case trend.Delta > pressureTrendDelta:
		trend.Direction = "bullish"
	case trend.Delta < -pressureTrendDelta:
		trend.Direction = "bearish"
	}
	seen := make(map[float64]bool)
	for _, p := range points {
		if p.ManipulationLevel != nil && *p.ManipulationLevel > pressureManipLevel {
			trend.ManipulationEvents = append(trend.ManipulationEvents, p)
		}
		if p.AbsorptionPrice != nil && !seen[*p.AbsorptionPrice] {
			seen[*p.AbsorptionPrice] = true
			trend.AbsorptionLevels = append(trend.AbsorptionLevels, *p.AbsorptionPrice)
		}
	}
	return trend
}

// Reset 丢弃单个时间框的压力历史。
func (t *PressureTracker) Reset(symbol, timeframe string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	delete(t.history, engineKey(symbol, timeframe))
	t.mu.Unlock()
}

// ResetSymbol 丢弃某 symbol 全部时间框的压力历史。
func (t *PressureTracker) ResetSymbol(symbol string) {
	if t == nil {
		return
	}
	prefix := strings.ToUpper(strings.TrimSpace(symbol)) + "@"
	t.mu.Lock()
	for key := range t.history {
		if strings.HasPrefix(key, prefix) {
			delete(t.history, key)
		}
	}
	t.mu.Unlock()
}

// BuildPressurePoint 从最近 5 根 bar 汇总当前买卖压力，并附带操纵与吸收标记。
func BuildPressurePoint(bars []VolumeDeltaBar, sm SmartMoneySignals, absorption []AbsorptionPattern) PressureHistoryPoint {
	var point PressureHistoryPoint
	if len(bars) == 0 {
		return point
	}
	start := 0
	if len(bars) > pressureWindowBars {
		start = len(bars) - pressureWindowBars
	}
	var buy, sell float64
	for _, b := range bars[start:] {
		buy += b.BuyVolume
		sell += b.SellVolume
	}
	total := buy + sell
	last := bars[len(bars)-1]
	point.Timestamp = last.Timestamp
	point.Price = last.Price
	point.Volume = last.TotalVolume
	if total > 0 {
		point.BuyPressure = num.RoundTo(buy/total*100, 2)
		point.SellPressure = num.RoundTo(sell/total*100, 2)
	}
	if sm.Manipulation.Detected {
		level := sm.Manipulation.Confidence
		point.ManipulationLevel = &level
	}
	if len(absorption) > 0 {
		latest := absorption[len(absorption)-1]
		// 取整到展示精度，后续按价位去重时浮点噪声不会产生伪价位。
		price := num.RoundPrice((latest.PriceRange.High + latest.PriceRange.Low) / 2)
		point.AbsorptionPrice = &price
	}
	return point
}
