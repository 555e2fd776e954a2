package orderflow

import (
	"math"

	"riptide/internal/market"
)

const (
	absorptionWindow       = 15
	absorptionVolumeFactor = 1.5
	absorptionMinBars      = 3
	absorptionMaxReturned  = 10

	absorptionNetShare     = 0.30
	absorptionInstEff      = 80.0
	absorptionInstVolume   = 3.0
	absorptionStrongEff    = 60.0
	absorptionWeakEff      = 30.0
	absorptionReversalEff  = 70.0
	absorptionHighProxPart = 0.10
)

// DetectAbsorption 以 15 根窗口滑动扫描，寻找高量低位移的吸收区间。
// 每个窗口要求至少 3 根量能超过窗口均量 1.5 倍，最多返回最近 10 个。
func DetectAbsorption(bars []VolumeDeltaBar, candles []market.Candle) []AbsorptionPattern {
	if len(bars) < absorptionWindow || len(bars) != len(candles) {
		return nil
	}

	var patterns []AbsorptionPattern
	for start := 0; start+absorptionWindow <= len(bars); start++ {
		winBars := bars[start : start+absorptionWindow]
		winCandles := candles[start : start+absorptionWindow]

		var totalVol, maxBarVol, net float64
		for _, b := range winBars {
			totalVol += b.TotalVolume
			net += b.NetVolume
			if b.TotalVolume > maxBarVol {
				maxBarVol = b.TotalVolume
			}
		}
		avg := totalVol / absorptionWindow
		highBars := 0
		for _, b := range winBars {
			if b.TotalVolume > absorptionVolumeFactor*avg {
				highBars++
			}
		}
		if highBars < absorptionMinBars {
			continue
		}

		rng := windowRange(winCandles)
		width := rng.Width()
		efficiency := 0.0
		if width > 0 {
			efficiency = math.Min(100, totalVol/width*1000)
		}

		typ := AbsorptionTwoWay
		if math.Abs(net) > absorptionNetShare*totalVol {
			if net > 0 {
				typ = AbsorptionBuy
			} else {
				typ = AbsorptionSell
			}
		}

		strength := AbsorptionModerate
		switch {
		case efficiency > absorptionInstEff && maxBarVol > absorptionInstVolume*avg:
			strength = AbsorptionInstitutional
		case efficiency > absorptionStrongEff:
			strength = AbsorptionStrong
		case efficiency < absorptionWeakEff:
			strength = AbsorptionWeak
		}

		winClose := winCandles[len(winCandles)-1].Close
		closeAtHigh := width > 0 && winClose >= rng.High-absorptionHighProxPart*width
		implication := ImplicationSupport
		switch {
		case typ == AbsorptionSell && closeAtHigh:
			implication = ImplicationResistance
		case efficiency > absorptionReversalEff:
			implication = ImplicationReversalZone
		case typ != AbsorptionBuy:
			implication = ImplicationContinuation
		}

		patterns = append(patterns, AbsorptionPattern{
			Type:           typ,
			StartTime:      winBars[0].Timestamp,
			EndTime:        winBars[len(winBars)-1].Timestamp,
			PriceRange:     rng,
			VolumeAbsorbed: totalVol,
			Efficiency:     efficiency,
			Strength:       strength,
			Implication:    implication,
		})
	}

	if len(patterns) > absorptionMaxReturned {
		patterns = patterns[len(patterns)-absorptionMaxReturned:]
	}
	return patterns
}

func windowRange(candles []market.Candle) PriceRange {
	if len(candles) == 0 {
		return PriceRange{}
	}
	rng := PriceRange{High: candles[0].High, Low: candles[0].Low}
	for _, c := range candles[1:] {
		if c.High > rng.High {
			rng.High = c.High
		}
		if c.Low < rng.Low {
			rng.Low = c.Low
		}
	}
	return rng
}
