package orderflow

import (
	"testing"

	"riptide/internal/market"
)

// flatVolumeSeries 构造价格近乎平坦的序列，hot 下标的量能放大 factor 倍。
func flatVolumeSeries(t *testing.T, n int, baseVol, factor float64, hot map[int]bool) ([]market.Candle, []VolumeDeltaBar) {
	t.Helper()
	candles := make([]market.Candle, n)
	bars := make([]VolumeDeltaBar, n)
	for i := 0; i < n; i++ {
		ts := testBaseMs + int64(i)*testHourMs
		vol := baseVol
		if hot[i] {
			vol = baseVol * factor
		}
		candles[i] = market.Candle{
			OpenTime:  ts,
			CloseTime: ts + testHourMs - 1,
			Open:      100.0,
			High:      100.2,
			Low:       99.9,
			Close:     100.05,
			Volume:    vol,
		}
		bars[i] = VolumeDeltaBar{
			Timestamp:       ts,
			Price:           100.05,
			BuyVolume:       vol / 2,
			SellVolume:      vol / 2,
			NetVolume:       0,
			TotalVolume:     vol,
			CumulativeDelta: 0,
		}
	}
	return candles, bars
}

// TestAbsorptionRequiresThreeHighVolumeBars 验证高量 bar 不足 3 根时窗口不产出形态。
func TestAbsorptionRequiresThreeHighVolumeBars(t *testing.T) {
	candles, bars := flatVolumeSeries(t, 15, 1000, 2.0, map[int]bool{3: true, 7: true})
	if got := DetectAbsorption(bars, candles); len(got) != 0 {
		t.Fatalf("仅 2 根高量 bar 不应产出形态, 实际=%d", len(got))
	}
}

// TestFlatPriceHighVolumeYieldsStrongPattern 覆盖“平价高量窗口必出强形态”的端到端性质。
func TestFlatPriceHighVolumeYieldsStrongPattern(t *testing.T) {
	candles, bars := flatVolumeSeries(t, 15, 1000, 2.0, map[int]bool{3: true, 7: true, 11: true})
	got := DetectAbsorption(bars, candles)
	if len(got) == 0 {
		t.Fatalf("平价高量窗口应至少产出 1 个吸收形态")
	}
	p := got[0]
	if p.Strength != AbsorptionStrong && p.Strength != AbsorptionInstitutional {
		t.Fatalf("强度应为 strong 或 institutional, 实际=%v", p.Strength)
	}
	if p.Type != AbsorptionTwoWay {
		t.Fatalf("净流为 0 应判定 two_way_absorption, 实际=%v", p.Type)
	}
	if p.Efficiency <= 60 || p.Efficiency > 100 {
		t.Fatalf("效率应在 (60,100], 实际=%.2f", p.Efficiency)
	}
}

// TestAbsorptionTypeByNetFlow 验证净流超过总量 30% 时按符号归类买/卖吸收。
func TestAbsorptionTypeByNetFlow(t *testing.T) {
	candles, bars := flatVolumeSeries(t, 15, 1000, 2.0, map[int]bool{3: true, 7: true, 11: true})
	for i := range bars {
		bars[i].BuyVolume = bars[i].TotalVolume * 0.8
		bars[i].SellVolume = bars[i].TotalVolume * 0.2
		bars[i].NetVolume = bars[i].BuyVolume - bars[i].SellVolume
	}
	got := DetectAbsorption(bars, candles)
	if len(got) == 0 {
		t.Fatalf("应产出吸收形态")
	}
	if got[0].Type != AbsorptionBuy {
		t.Fatalf("净流 +60%% 应判定 buy_absorption, 实际=%v", got[0].Type)
	}

	for i := range bars {
		bars[i].BuyVolume, bars[i].SellVolume = bars[i].SellVolume, bars[i].BuyVolume
		bars[i].NetVolume = -bars[i].NetVolume
	}
	got = DetectAbsorption(bars, candles)
	if len(got) == 0 || got[0].Type != AbsorptionSell {
		t.Fatalf("净流 -60%% 应判定 sell_absorption, 实际=%+v", got)
	}
}

// TestAbsorptionZeroWidthWindow 验证价格零宽度窗口的效率为 0。
func TestAbsorptionZeroWidthWindow(t *testing.T) {
	candles, bars := flatVolumeSeries(t, 15, 1000, 2.0, map[int]bool{3: true, 7: true, 11: true})
	for i := range candles {
		candles[i].High = 100
		candles[i].Low = 100
		candles[i].Close = 100
	}
	got := DetectAbsorption(bars, candles)
	if len(got) == 0 {
		t.Fatalf("零宽度窗口仍应产出形态")
	}
	if got[0].Efficiency != 0 {
		t.Fatalf("零宽度效率应为 0, 实际=%.2f", got[0].Efficiency)
	}
	if got[0].Strength != AbsorptionWeak {
		t.Fatalf("零效率应判定 weak, 实际=%v", got[0].Strength)
	}
}

// TestAbsorptionCapsAtTenPatterns 验证最多返回最近 10 个形态。
func TestAbsorptionCapsAtTenPatterns(t *testing.T) {
	hot := make(map[int]bool)
	for i := 0; i < 40; i += 2 {
		hot[i] = true
	}
	candles, bars := flatVolumeSeries(t, 40, 1000, 4.0, hot)
	got := DetectAbsorption(bars, candles)
	if len(got) != absorptionMaxReturned {
		t.Fatalf("应裁剪到 %d 个形态, 实际=%d", absorptionMaxReturned, len(got))
	}
	last := got[len(got)-1]
	wantEnd := bars[len(bars)-1].Timestamp
	if last.EndTime != wantEnd {
		t.Fatalf("应保留最近的形态, 末尾 EndTime 期望=%d, 实际=%d", wantEnd, last.EndTime)
	}
}
