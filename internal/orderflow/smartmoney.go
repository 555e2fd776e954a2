package orderflow

import (
	"math"

	"riptide/internal/market"
	"riptide/internal/pkg/num"
)

const (
	smartWindow = 20

	clusterBuyRatioMin    = 0.6
	clusterVolumeFactor   = 1.5
	clusterMinBars        = 2
	clusterMinSpanMinutes = 30.0
	clusterConsistencyMin = 0.4

	distSellDominance    = 0.55
	distExhaustionBars   = 3
	distExhaustionFactor = 1.8
	distStrongExitFactor = 2.0

	grabDeltaFactor  = 3.0
	grabMinFlagged   = 1
	huntMinReversals = 3
	washSimilarity   = 0.85
	washMinMatches   = 2

	manipConfidenceCap = 95.0
	manipPatternPts    = 20.0
	manipInstPts       = 15.0

	targetStopHuntPct  = 0.005
	targetBreakoutExt  = 0.10
	targetProximityPct = 0.05
)

// DetectSmartMoney 在最近 20 根窗口上叠加吸筹、派发与操纵启发式。
// 任何输入不足都降级为零值信号，从不报错。
func DetectSmartMoney(bars []VolumeDeltaBar, candles []market.Candle, flow FlowAnalysis, absorption []AbsorptionPattern, timeframe string) SmartMoneySignals {
	var out SmartMoneySignals
	out.Manipulation.RiskLevel = RiskLow
	out.Manipulation.ExpectedMove = ExpectedMove{Direction: "neutral", Timeframe: market.NormalizeInterval(timeframe)}
	if len(bars) == 0 || len(bars) != len(candles) {
		return out
	}

	start := 0
	if len(bars) > smartWindow {
		start = len(bars) - smartWindow
	}
	winBars := bars[start:]
	winCandles := candles[start:]

	out.Accumulation = detectAccumulation(winBars, flow, absorption)
	out.Distribution = detectDistribution(winBars, flow, absorption)
	out.Manipulation = detectManipulation(winBars, winCandles, absorption, timeframe)
	return out
}

func detectAccumulation(bars []VolumeDeltaBar, flow FlowAnalysis, absorption []AbsorptionPattern) AccumulationSignal {
	var sig AccumulationSignal
	if len(bars) == 0 {
		return sig
	}

	var buy, total float64
	for _, b := range bars {
		buy += b.BuyVolume
		total += b.TotalVolume
	}
	if total > 0 {
		sig.BuyRatio = buy / total
	}

	avgBuy := buy / float64(len(bars))
	firstCluster, lastCluster := int64(0), int64(0)
	for _, b := range bars {
		if avgBuy > 0 && b.BuyVolume > clusterVolumeFactor*avgBuy {
			sig.ClusterBars++
			if firstCluster == 0 {
				firstCluster = b.Timestamp
			}
			lastCluster = b.Timestamp
		}
	}
	if sig.ClusterBars >= clusterMinBars {
		sig.SpanMinutes = float64(lastCluster-firstCluster) / 60000.0
	}
	sig.Consistency = volumeConsistency(bars)

	clustered := sig.BuyRatio > clusterBuyRatioMin &&
		sig.ClusterBars >= clusterMinBars &&
		sig.SpanMinutes >= clusterMinSpanMinutes &&
		sig.Consistency > clusterConsistencyMin

	sig.Detected = flow.Trend == FlowAccumulation &&
		hasAbsorptionSide(absorption, AbsorptionBuy) &&
		clustered
	return sig
}

func detectDistribution(bars []VolumeDeltaBar, flow FlowAnalysis, absorption []AbsorptionPattern) DistributionSignal {
	var sig DistributionSignal
	if len(bars) == 0 {
		return sig
	}

	var sell, total float64
	for _, b := range bars {
		sell += b.SellVolume
		total += b.TotalVolume
	}
	if total > 0 {
		sig.SellDominance = sell / total
	}

	avgSell := sell / float64(len(bars))
	if avgSell > 0 && len(bars) >= distExhaustionBars {
		recent := bars[len(bars)-distExhaustionBars:]
		var recentSell float64
		for _, b := range recent {
			recentSell += b.SellVolume
		}
		sig.Exhaustion = recentSell/float64(distExhaustionBars) > distExhaustionFactor*avgSell
	}
	for _, b := range bars {
		if avgSell > 0 && b.SellVolume > distStrongExitFactor*avgSell {
			sig.StrongExits++
		}
	}

	sig.Detected = flow.Trend == FlowDistribution &&
		hasAbsorptionSide(absorption, AbsorptionSell) &&
		sig.SellDominance > distSellDominance &&
		sig.Exhaustion &&
		sig.StrongExits >= 1
	return sig
}

func detectManipulation(bars []VolumeDeltaBar, candles []market.Candle, absorption []AbsorptionPattern, timeframe string) ManipulationSignal {
	sig := ManipulationSignal{
		RiskLevel:    RiskLow,
		ExpectedMove: ExpectedMove{Direction: "neutral", Timeframe: market.NormalizeInterval(timeframe)},
	}
	if len(bars) == 0 {
		return sig
	}

	if countLiquidityGrabs(bars) > grabMinFlagged {
		sig.Patterns = append(sig.Patterns, ManipLiquidityGrab)
	}
	if countDeltaReversals(bars) > huntMinReversals {
		sig.Patterns = append(sig.Patterns, ManipStopHunt)
	}
	if countWashMatches(bars) > washMinMatches {
		sig.Patterns = append(sig.Patterns, ManipWashTrading)
	}
	instPatterns := institutionalPatterns(absorption)
	if len(instPatterns) > 0 {
		sig.Patterns = append(sig.Patterns, ManipInstAbsorption)
	}

	count := len(sig.Patterns)
	sig.Detected = count > 0
	switch {
	case count >= 3:
		sig.RiskLevel = RiskHigh
	case count >= 1:
		sig.RiskLevel = RiskMedium
	}
	sig.Confidence = math.Min(manipConfidenceCap,
		float64(count)*manipPatternPts+float64(len(instPatterns))*manipInstPts)

	currentPrice := bars[len(bars)-1].Price
	sig.PriceTargets = manipulationTargets(sig.Patterns, instPatterns, candles, currentPrice)
	sig.ExpectedMove = expectedMove(bars, sig.PriceTargets, currentPrice, timeframe)
	return sig
}

// countLiquidityGrabs 统计 |累计 delta| 超过窗口均值 3 倍的异常 bar。
func countLiquidityGrabs(bars []VolumeDeltaBar) int {
	var sum float64
	for _, b := range bars {
		sum += math.Abs(b.CumulativeDelta)
	}
	mean := sum / float64(len(bars))
	if mean == 0 {
		return 0
	}
	count := 0
	for _, b := range bars {
		if math.Abs(b.CumulativeDelta) > grabDeltaFactor*mean {
			count++
		}
	}
	return count
}

// countDeltaReversals 统计累计 delta 在 3 个连续点上的方向反转次数。
func countDeltaReversals(bars []VolumeDeltaBar) int {
	count := 0
	for i := 2; i < len(bars); i++ {
		d1 := bars[i-1].CumulativeDelta - bars[i-2].CumulativeDelta
		d2 := bars[i].CumulativeDelta - bars[i-1].CumulativeDelta
		if d1*d2 < 0 {
			count++
		}
	}
	return count
}

// countWashMatches 统计相邻两根 bar 买量近乎相同（比值 > 0.85）的次数。
func countWashMatches(bars []VolumeDeltaBar) int {
	count := 0
	for i := 1; i < len(bars); i++ {
		a, b := bars[i-1].BuyVolume, bars[i].BuyVolume
		if a <= 0 || b <= 0 {
			continue
		}
		if math.Min(a, b)/math.Max(a, b) > washSimilarity {
			count++
		}
	}
	return count
}

func institutionalPatterns(absorption []AbsorptionPattern) []AbsorptionPattern {
	var out []AbsorptionPattern
	for _, p := range absorption {
		if p.Strength == AbsorptionInstitutional {
			out = append(out, p)
		}
	}
	return out
}

func hasAbsorptionSide(absorption []AbsorptionPattern, typ AbsorptionType) bool {
	for _, p := range absorption {
		if p.Type == typ && p.Strength != AbsorptionWeak {
			return true
		}
	}
	return false
}

// manipulationTargets 按模式推导价格目标，只保留距现价 5% 以内的。
func manipulationTargets(patterns []ManipulationType, instPatterns []AbsorptionPattern, candles []market.Candle, currentPrice float64) []PriceTarget {
	if currentPrice <= 0 || len(candles) == 0 {
		return nil
	}
	rng := windowRange(candles)

	var raw []PriceTarget
	for _, p := range patterns {
		switch p {
		case ManipStopHunt:
			raw = append(raw,
				PriceTarget{Type: ManipStopHunt, Price: rng.Low * (1 - targetStopHuntPct), Side: "below"},
				PriceTarget{Type: ManipStopHunt, Price: rng.High * (1 + targetStopHuntPct), Side: "above"},
			)
		case ManipLiquidityGrab:
			for _, inst := range instPatterns {
				raw = append(raw,
					PriceTarget{Type: ManipLiquidityGrab, Price: inst.PriceRange.Low, Side: "below"},
					PriceTarget{Type: ManipLiquidityGrab, Price: inst.PriceRange.High, Side: "above"},
				)
			}
		}
	}
	if len(patterns) >= 2 {
		ext := rng.Width() * targetBreakoutExt
		raw = append(raw,
			PriceTarget{Type: ManipFalseBreakout, Price: rng.High + ext, Side: "above"},
			PriceTarget{Type: ManipFalseBreakout, Price: rng.Low - ext, Side: "below"},
		)
	}

	var out []PriceTarget
	for _, t := range raw {
		if t.Price <= 0 {
			continue
		}
		if math.Abs(t.Price-currentPrice)/currentPrice <= targetProximityPct {
			t.Price = num.RoundPrice(t.Price)
			out = append(out, t)
		}
	}
	return out
}

func expectedMove(bars []VolumeDeltaBar, targets []PriceTarget, currentPrice float64, timeframe string) ExpectedMove {
	move := ExpectedMove{Direction: "neutral", Timeframe: market.NormalizeInterval(timeframe)}
	if len(targets) == 0 || currentPrice <= 0 {
		return move
	}
	if len(bars) > 5 {
		last := bars[len(bars)-1].CumulativeDelta
		prev := bars[len(bars)-6].CumulativeDelta
		if last > prev {
			move.Direction = "up"
		} else if last < prev {
			move.Direction = "down"
		}
	}
	var sum float64
	for _, t := range targets {
		sum += math.Abs(t.Price-currentPrice) / currentPrice * 100
	}
	move.Magnitude = sum / float64(len(targets))
	return move
}

// volumeConsistency 返回 1 - σ/μ，量能越均匀越接近 1。
func volumeConsistency(bars []VolumeDeltaBar) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += b.TotalVolume
	}
	mean := sum / float64(len(bars))
	if mean == 0 {
		return 0
	}
	var variance float64
	for _, b := range bars {
		d := b.TotalVolume - mean
		variance += d * d
	}
	variance /= float64(len(bars))
	return 1 - math.Sqrt(variance)/mean
}
