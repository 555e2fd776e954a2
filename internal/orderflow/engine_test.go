package orderflow

import (
	"math"
	"testing"

	"riptide/internal/market"
)

const (
	testBaseMs = int64(1_700_000_000_000)
	testHourMs = int64(3_600_000)
)

// hourlyCandles 构造 n 根 1h K 线，默认缓慢上行，可用 mutate 调整单根。
func hourlyCandles(t *testing.T, n int, mutate func(i int, c *market.Candle)) []market.Candle {
	t.Helper()
	out := make([]market.Candle, n)
	for i := range out {
		open := 100.0 + float64(i)
		c := market.Candle{
			OpenTime:  testBaseMs + int64(i)*testHourMs,
			CloseTime: testBaseMs + int64(i+1)*testHourMs - 1,
			Open:      open,
			High:      open + 2,
			Low:       open - 2,
			Close:     open + 1,
			Volume:    1000,
		}
		if mutate != nil {
			mutate(i, &c)
		}
		out[i] = c
	}
	return out
}

// tradesFor 为每根 K 线在窗口内生成 buyPerBar 买量与 sellPerBar 卖量。
func tradesFor(t *testing.T, candles []market.Candle, buyPerBar, sellPerBar float64) []market.Trade {
	t.Helper()
	var out []market.Trade
	for _, c := range candles {
		if buyPerBar > 0 {
			out = append(out, market.Trade{
				Timestamp: c.OpenTime + 1000,
				Price:     c.Close,
				Size:      buyPerBar,
				Side:      market.TradeBuy,
			})
		}
		if sellPerBar > 0 {
			out = append(out, market.Trade{
				Timestamp: c.OpenTime + 2000,
				Price:     c.Close,
				Size:      sellPerBar,
				Side:      market.TradeSell,
			})
		}
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// TestDeltaBarContinuity 验证单次调用内累计 delta 严格等于前值加净量。
func TestDeltaBarContinuity(t *testing.T) {
	candles := hourlyCandles(t, 30, nil)
	trades := tradesFor(t, candles, 600, 400)
	bars := NewEngine().DeltaBars("BTCUSDT", "1h", candles, trades)
	if len(bars) != 30 {
		t.Fatalf("应生成 30 根 delta bar, 实际=%d", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		want := bars[i-1].CumulativeDelta + bars[i].NetVolume
		if !almostEqual(bars[i].CumulativeDelta, want) {
			t.Fatalf("第 %d 根累计 delta 断裂: 期望=%.6f, 实际=%.6f", i, want, bars[i].CumulativeDelta)
		}
	}
}

// TestDeltaBarContinuityAcrossCalls 验证第二次调用从存量累计值继续。
func TestDeltaBarContinuityAcrossCalls(t *testing.T) {
	engine := NewEngine()
	first := hourlyCandles(t, 20, nil)
	firstBars := engine.DeltaBars("BTCUSDT", "1h", first, tradesFor(t, first, 700, 300))
	carried := firstBars[len(firstBars)-1].CumulativeDelta
	if !almostEqual(engine.CumulativeDelta("BTCUSDT", "1h"), carried) {
		t.Fatalf("引擎存量应为 %.4f, 实际=%.4f", carried, engine.CumulativeDelta("BTCUSDT", "1h"))
	}

	second := hourlyCandles(t, 5, func(i int, c *market.Candle) {
		c.OpenTime += 20 * testHourMs
		c.CloseTime += 20 * testHourMs
	})
	secondBars := engine.DeltaBars("BTCUSDT", "1h", second, tradesFor(t, second, 500, 500))
	want := carried + secondBars[0].NetVolume
	if !almostEqual(secondBars[0].CumulativeDelta, want) {
		t.Fatalf("跨调用累计应从 %.4f 继续, 期望首根=%.4f, 实际=%.4f", carried, want, secondBars[0].CumulativeDelta)
	}
}

// TestDeltaBarsIdempotent 验证相同种子与相同输入产生逐字段一致的序列。
func TestDeltaBarsIdempotent(t *testing.T) {
	candles := hourlyCandles(t, 25, nil)
	trades := tradesFor(t, candles, 650, 350)

	a := NewEngine().DeltaBars("ETHUSDT", "1h", candles, trades)
	b := NewEngine().DeltaBars("ETHUSDT", "1h", candles, trades)
	if len(a) != len(b) {
		t.Fatalf("两次结果长度不一致: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("第 %d 根 bar 不一致: %+v vs %+v", i, a[i], b[i])
		}
	}
}

// TestFallbackSplitByCandleDirection 验证无成交时按 K 线方向 60/40 拆分。
func TestFallbackSplitByCandleDirection(t *testing.T) {
	candles := hourlyCandles(t, 2, func(i int, c *market.Candle) {
		c.Volume = 1000
		if i == 1 {
			c.Close = c.Open - 1 // 阴线
		}
	})
	bars := NewEngine().DeltaBars("BTCUSDT", "1h", candles, nil)

	if !almostEqual(bars[0].BuyVolume, 600) || !almostEqual(bars[0].SellVolume, 400) {
		t.Fatalf("阳线应拆为 600/400, 实际=%.1f/%.1f", bars[0].BuyVolume, bars[0].SellVolume)
	}
	if !almostEqual(bars[1].BuyVolume, 400) || !almostEqual(bars[1].SellVolume, 600) {
		t.Fatalf("阴线应拆为 400/600, 实际=%.1f/%.1f", bars[1].BuyVolume, bars[1].SellVolume)
	}
}

// TestFlatCandleFallbackIsBearish 验证平盘 K 线与阴线同样按 40/60 拆分。
func TestFlatCandleFallbackIsBearish(t *testing.T) {
	candles := hourlyCandles(t, 1, func(i int, c *market.Candle) {
		c.Close = c.Open
		c.Volume = 500
	})
	bars := NewEngine().DeltaBars("BTCUSDT", "1h", candles, nil)
	if !almostEqual(bars[0].BuyVolume, 200) || !almostEqual(bars[0].SellVolume, 300) {
		t.Fatalf("平盘应拆为 200/300, 实际=%.1f/%.1f", bars[0].BuyVolume, bars[0].SellVolume)
	}
}

// TestTradeWindowAttribution 验证只统计 [open, open+interval) 内的成交。
func TestTradeWindowAttribution(t *testing.T) {
	candles := hourlyCandles(t, 2, nil)
	trades := []market.Trade{
		{Timestamp: candles[0].OpenTime, Size: 10, Side: market.TradeBuy},                  // 窗口起点含
		{Timestamp: candles[0].OpenTime + testHourMs - 1, Size: 5, Side: market.TradeSell}, // 窗口末端含
		{Timestamp: candles[0].OpenTime + testHourMs, Size: 99, Side: market.TradeBuy},     // 属于第二根
	}
	bars := NewEngine().DeltaBars("BTCUSDT", "1h", candles, trades)

	if !almostEqual(bars[0].BuyVolume, 10) || !almostEqual(bars[0].SellVolume, 5) {
		t.Fatalf("首根应为 10/5, 实际=%.1f/%.1f", bars[0].BuyVolume, bars[0].SellVolume)
	}
	if !almostEqual(bars[1].BuyVolume, 99) {
		t.Fatalf("边界成交应归属第二根, 实际买量=%.1f", bars[1].BuyVolume)
	}
}

// TestAggressionRatioZeroVolume 验证零量 bar 的进攻率回落到 0.5。
func TestAggressionRatioZeroVolume(t *testing.T) {
	candles := hourlyCandles(t, 1, func(i int, c *market.Candle) { c.Volume = 0 })
	bars := NewEngine().DeltaBars("BTCUSDT", "1h", candles, nil)
	if !almostEqual(bars[0].AggressionRatio, 0.5) {
		t.Fatalf("零量进攻率应为 0.5, 实际=%.4f", bars[0].AggressionRatio)
	}
	if bars[0].IsAbsorption {
		t.Fatalf("零量 bar 不应标记吸收")
	}
}

// TestEngineKeyIsolation 验证不同时间框的累计互不影响。
func TestEngineKeyIsolation(t *testing.T) {
	engine := NewEngine()
	candles := hourlyCandles(t, 20, nil)
	engine.DeltaBars("BTCUSDT", "1h", candles, tradesFor(t, candles, 900, 100))
	engine.DeltaBars("BTCUSDT", "4h", candles, tradesFor(t, candles, 100, 900))

	h1 := engine.CumulativeDelta("BTCUSDT", "1h")
	h4 := engine.CumulativeDelta("BTCUSDT", "4h")
	if h1 <= 0 || h4 >= 0 {
		t.Fatalf("1h 与 4h 累计应分别为正/负, 实际=%.1f/%.1f", h1, h4)
	}
}

// TestEngineResetSymbol 验证停止跟踪后累计状态清零。
func TestEngineResetSymbol(t *testing.T) {
	engine := NewEngine()
	candles := hourlyCandles(t, 20, nil)
	engine.DeltaBars("BTCUSDT", "1h", candles, tradesFor(t, candles, 800, 200))
	engine.ResetSymbol("btcusdt")
	if got := engine.CumulativeDelta("BTCUSDT", "1h"); got != 0 {
		t.Fatalf("重置后累计应为 0, 实际=%.4f", got)
	}
}

// TestUnknownTimeframeDefaultsToHour 验证未知时间框回落到 1h 窗口。
func TestUnknownTimeframeDefaultsToHour(t *testing.T) {
	if got := market.IntervalMillis("7m"); got != testHourMs {
		t.Fatalf("未知时间框应回落到 1h(%d ms), 实际=%d", testHourMs, got)
	}
	if got := market.IntervalMillis("15M"); got != 15*60*1000 {
		t.Fatalf("大小写不应影响映射, 实际=%d", got)
	}
}

// TestPreviewDeltaBarsDoesNotAdvanceState 验证预览聚合不推进累计值。
func TestPreviewDeltaBarsDoesNotAdvanceState(t *testing.T) {
	engine := NewEngine()
	candles := hourlyCandles(t, 20, nil)
	trades := tradesFor(t, candles, 700, 300)

	live := engine.DeltaBars("BTCUSDT", "1h", candles, trades)
	carried := engine.CumulativeDelta("BTCUSDT", "1h")

	preview := engine.PreviewDeltaBars("BTCUSDT", "1h", candles, trades)
	if !almostEqual(engine.CumulativeDelta("BTCUSDT", "1h"), carried) {
		t.Fatalf("预览不应改动存量: 期望=%.4f, 实际=%.4f", carried, engine.CumulativeDelta("BTCUSDT", "1h"))
	}
	if len(preview) != len(live) {
		t.Fatalf("预览长度应与实时一致: %d vs %d", len(preview), len(live))
	}
	if !almostEqual(preview[0].CumulativeDelta, carried+preview[0].NetVolume) {
		t.Fatalf("预览应从存量累计出发: %.4f", preview[0].CumulativeDelta)
	}

	again := engine.PreviewDeltaBars("BTCUSDT", "1h", candles, trades)
	for i := range preview {
		if preview[i] != again[i] {
			t.Fatalf("重复预览第 %d 根不一致: %+v vs %+v", i, preview[i], again[i])
		}
	}
}
