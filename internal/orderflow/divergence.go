package orderflow

import (
	"math"

	"riptide/internal/market"
)

const (
	divergenceSwingTolMs = int64(60 * 60 * 1000)
	divergenceActiveMs   = int64(4 * 60 * 60 * 1000)
	divergenceRecentMs   = int64(24 * 60 * 60 * 1000)
)

// DetectDivergences 对比价格摆动与 CVD 摆动的方向，输出按新鲜度分桶的背离。
// 价格摆动高点取 high 序列、低点取 close 序列；CVD 摆动取累计 delta。
// 新鲜度以最后一根 bar 的时间为基准：4 小时内 active，24 小时内 recent。
func DetectDivergences(candles []market.Candle, bars []VolumeDeltaBar) DivergenceSet {
	var set DivergenceSet
	if len(candles) == 0 || len(bars) == 0 || len(candles) != len(bars) {
		return set
	}

	n := len(candles)
	highs := make([]float64, n)
	closes := make([]float64, n)
	times := make([]int64, n)
	cvd := make([]float64, n)
	for i, c := range candles {
		highs[i] = c.High
		closes[i] = c.Close
		times[i] = c.OpenTime
		cvd[i] = bars[i].CumulativeDelta
	}

	priceSwings := mergeSwings(
		collectSwings(highs, times, swingLookback, SwingHigh),
		collectSwings(closes, times, swingLookback, SwingLow),
	)
	cvdSwings := mergeSwings(
		collectSwings(cvd, times, swingLookback, SwingHigh),
		collectSwings(cvd, times, swingLookback, SwingLow),
	)
	if len(priceSwings) < 2 || len(cvdSwings) == 0 {
		return set
	}

	now := bars[n-1].Timestamp
	lastClose := closes[n-1]
	cvdScale := meanAbs(cvd)
	if cvdScale == 0 {
		cvdScale = 1
	}

	for i := 1; i < len(priceSwings); i++ {
		p1, p2 := priceSwings[i-1], priceSwings[i]
		c1, ok1 := nearestSwing(cvdSwings, p1.Timestamp, divergenceSwingTolMs)
		c2, ok2 := nearestSwing(cvdSwings, p2.Timestamp, divergenceSwingTolMs)
		if !ok1 || !ok2 || c1.Index == c2.Index {
			continue
		}

		priceDir := directionOf(p1.Value, p2.Value)
		cvdDir := directionOf(c1.Value, c2.Value)
		if priceDir == cvdDir {
			continue
		}

		age := now - p2.Timestamp
		if age >= divergenceRecentMs {
			continue
		}

		typ := DivergenceBullish
		if priceDir == "up" {
			typ = DivergenceBearish
		}
		div := Divergence{
			Type:           typ,
			StartTime:      p1.Timestamp,
			EndTime:        p2.Timestamp,
			PriceDirection: priceDir,
			CVDDirection:   cvdDir,
			Significance:   divergenceSignificance(p1.Value, p2.Value, c1.Value, c2.Value, cvdScale),
			Confirmed:      divergenceConfirmed(typ, p2.Value, lastClose),
		}
		if age < divergenceActiveMs {
			set.Active = append(set.Active, div)
		} else {
			set.Recent = append(set.Recent, div)
		}
	}
	return set
}

func directionOf(prev, next float64) string {
	if next > prev {
		return "up"
	}
	return "down"
}

// divergenceSignificance 把价格摆动幅度与 CVD 摆动幅度合成 0-100 分值。
func divergenceSignificance(p1, p2, c1, c2, cvdScale float64) float64 {
	pricePct := 0.0
	if p1 != 0 {
		pricePct = math.Abs((p2-p1)/p1) * 100
	}
	cvdMag := math.Abs(c2-c1) / cvdScale
	return clampFloat(pricePct*10+cvdMag*20, 0, 100)
}

// divergenceConfirmed 检查最新收盘是否已朝背离暗示的方向运动。
func divergenceConfirmed(typ DivergenceType, swingPrice, lastClose float64) bool {
	if typ == DivergenceBullish {
		return lastClose > swingPrice
	}
	return lastClose < swingPrice
}

func meanAbs(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += math.Abs(v)
	}
	return sum / float64(len(values))
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
