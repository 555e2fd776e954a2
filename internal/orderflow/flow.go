package orderflow

import (
	"math"

	"riptide/internal/market"
)

const (
	flowWindow         = 50
	flowStrongShare    = 0.4
	flowWeakShare      = 0.1
	flowLargeBarFactor = 2.0
	flowFootprintShare = 0.2
)

// AnalyzeFlow 在最近 50 根窗口上定性买卖量趋势与市场阶段。
// 输入窗口为空时返回 neutral/ranging 的零值结果，从不报错。
func AnalyzeFlow(bars []VolumeDeltaBar, candles []market.Candle) FlowAnalysis {
	out := FlowAnalysis{
		Trend:    FlowNeutral,
		Phase:    PhaseRanging,
		Strength: FlowWeak,
	}
	if len(bars) == 0 || len(bars) != len(candles) {
		return out
	}

	start := 0
	if len(bars) > flowWindow {
		start = len(bars) - flowWindow
	}
	winBars := bars[start:]
	winCandles := candles[start:]
	n := len(winBars)

	var buy, sell float64
	for _, b := range winBars {
		buy += b.BuyVolume
		sell += b.SellVolume
	}
	total := buy + sell
	netFlow := buy - sell
	cvdChange := winBars[n-1].CumulativeDelta - winBars[0].CumulativeDelta
	priceChange := winCandles[n-1].Close - winCandles[0].Open

	switch {
	case cvdChange > 0 && priceChange > 0:
		out.Trend, out.Phase = FlowAccumulation, PhaseMarkup
	case cvdChange < 0 && priceChange < 0:
		out.Trend, out.Phase = FlowDistribution, PhaseMarkdown
	case cvdChange > 0 && priceChange < 0:
		out.Trend, out.Phase = FlowAccumulation, PhaseReaccumulation
	case cvdChange < 0 && priceChange > 0:
		out.Trend, out.Phase = FlowDistribution, PhaseRedistribution
	default:
		out.Trend, out.Phase = FlowRotation, PhaseRanging
	}

	out.Strength = FlowModerate
	if total > 0 {
		share := math.Abs(netFlow) / total
		switch {
		case share > flowStrongShare:
			out.Strength = FlowStrong
		case share < flowWeakShare:
			out.Strength = FlowWeak
		}
	} else {
		out.Strength = FlowWeak
	}

	avg := total / float64(n)
	largeBars := 0
	for _, b := range winBars {
		if b.TotalVolume > flowLargeBarFactor*avg {
			largeBars++
		}
	}
	share := float64(largeBars) / float64(n)

	out.CVDChange = cvdChange
	out.PriceChange = priceChange
	out.VolumeProfile = VolumeProfile{
		TotalVolume: total,
		BuyVolume:   buy,
		SellVolume:  sell,
		NetFlow:     netFlow,
		AvgPerBar:   avg,
	}
	out.InstitutionalFootprint = InstitutionalFootprint{
		Detected:  share > flowFootprintShare,
		LargeBars: largeBars,
		Share:     share,
	}
	return out
}
