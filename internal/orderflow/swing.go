package orderflow

const (
	// 5 点严格极值：i-2..i+2 邻域内严格大于/小于两侧。
	swingWindow   = 2
	swingLookback = 20
)

func isSwingPoint(series []float64, idx, prd int, highest bool) bool {
	if idx < prd || idx+prd >= len(series) {
		return false
	}
	v := series[idx]
	for off := 1; off <= prd; off++ {
		if highest {
			if series[idx-off] >= v || series[idx+off] >= v {
				return false
			}
		} else {
			if series[idx-off] <= v || series[idx+off] <= v {
				return false
			}
		}
	}
	return true
}

// collectSwings 在序列最后 lookback 个点上收集指定方向的摆动点。
func collectSwings(values []float64, times []int64, lookback int, kind SwingKind) []SwingPoint {
	n := len(values)
	if n == 0 || n != len(times) {
		return nil
	}
	start := 0
	if lookback > 0 && n > lookback {
		start = n - lookback
	}
	var out []SwingPoint
	for i := start; i < n; i++ {
		if !isSwingPoint(values, i, swingWindow, kind == SwingHigh) {
			continue
		}
		out = append(out, SwingPoint{
			Index:     i,
			Timestamp: times[i],
			Value:     values[i],
			Kind:      kind,
		})
	}
	return out
}

// mergeSwings 按索引升序合并高低点序列。
func mergeSwings(highs, lows []SwingPoint) []SwingPoint {
	out := make([]SwingPoint, 0, len(highs)+len(lows))
	i, j := 0, 0
	for i < len(highs) && j < len(lows) {
		if highs[i].Index <= lows[j].Index {
			out = append(out, highs[i])
			i++
		} else {
			out = append(out, lows[j])
			j++
		}
	}
	out = append(out, highs[i:]...)
	out = append(out, lows[j:]...)
	return out
}

// nearestSwing 返回时间上最接近 ts 且偏差不超过 tolMs 的摆动点。
func nearestSwing(swings []SwingPoint, ts, tolMs int64) (SwingPoint, bool) {
	var best SwingPoint
	bestDiff := tolMs + 1
	found := false
	for _, s := range swings {
		diff := s.Timestamp - ts
		if diff < 0 {
			diff = -diff
		}
		if diff <= tolMs && diff < bestDiff {
			best = s
			bestDiff = diff
			found = true
		}
	}
	return best, found
}
