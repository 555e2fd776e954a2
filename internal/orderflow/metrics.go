package orderflow

import "github.com/shopspring/decimal"

// ComputeSnapshot 从 delta 序列汇总一览式订单流状态。
// 字段含义：
//   - Value: 窗口末端的累计 delta。
//   - Momentum: 累计值减去 6 根之前的累计值（不足 6 根时为 0）。
//   - Normalized: (Value - min) / (max - min)，序列平坦时为 0.5。
//   - Divergence: 价格上行而 CVD 下行为 "bearish"，反之为 "bullish"，否则 "neutral"。
//   - PeakFlip: 最近 3 点构成局部顶为 "local_top"，局部底为 "local_bottom"，否则 "none"。
func ComputeSnapshot(bars []VolumeDeltaBar) (CVDSnapshot, bool) {
	if len(bars) == 0 {
		return CVDSnapshot{}, false
	}
	cvd := make([]decimal.Decimal, 0, len(bars))
	prices := make([]decimal.Decimal, 0, len(bars))
	for _, b := range bars {
		cvd = append(cvd, decimal.NewFromFloat(b.CumulativeDelta))
		prices = append(prices, decimal.NewFromFloat(b.Price))
	}

	last := cvd[len(cvd)-1]
	momentum := decimal.Zero
	if len(cvd) > 6 {
		momentum = last.Sub(cvd[len(cvd)-6])
	}

	minVal := cvd[0]
	maxVal := cvd[0]
	for _, v := range cvd[1:] {
		if v.LessThan(minVal) {
			minVal = v
		}
		if v.GreaterThan(maxVal) {
			maxVal = v
		}
	}
	norm := decimal.NewFromFloat(0.5)
	if maxVal.GreaterThan(minVal) {
		norm = last.Sub(minVal).Div(maxVal.Sub(minVal))
	}

	priceNow := prices[len(prices)-1]
	pricePrev := prices[0]
	cvdPrev := cvd[0]
	if len(prices) > 6 {
		pricePrev = prices[len(prices)-6]
		cvdPrev = cvd[len(cvd)-6]
	}
	divergence := "neutral"
	if priceNow.GreaterThan(pricePrev) && last.LessThan(cvdPrev) {
		divergence = "bearish"
	} else if priceNow.LessThan(pricePrev) && last.GreaterThan(cvdPrev) {
		divergence = "bullish"
	}

	peakFlip := "none"
	if len(cvd) > 3 {
		a := cvd[len(cvd)-1]
		b := cvd[len(cvd)-2]
		c := cvd[len(cvd)-3]
		if a.LessThan(b) && b.GreaterThan(c) {
			peakFlip = "local_top"
		} else if a.GreaterThan(b) && b.LessThan(c) {
			peakFlip = "local_bottom"
		}
	}

	value, _ := last.Float64()
	mom, _ := momentum.Float64()
	normF, _ := norm.Float64()
	return CVDSnapshot{
		Value:      value,
		Momentum:   mom,
		Normalized: normF,
		Divergence: divergence,
		PeakFlip:   peakFlip,
	}, true
}
