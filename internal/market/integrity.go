package market

// Gap 表示缺失的连续 K 线区间。
type Gap struct {
	From  int64 `json:"from"`
	To    int64 `json:"to"`
	Count int64 `json:"count"`
}

// IntegrityReport 描述一段 K 线序列的覆盖情况。
type IntegrityReport struct {
	Start      int64 `json:"start"`
	End        int64 `json:"end"`
	Expected   int64 `json:"expected"`
	Present    int64 `json:"present"`
	Gaps       []Gap `json:"gaps"`
	Duplicates int64 `json:"duplicates"`
	OutOfOrder int64 `json:"out_of_order"`
}

func (r IntegrityReport) Complete() bool {
	return len(r.Gaps) == 0 && r.Duplicates == 0 && r.OutOfOrder == 0
}

// CheckSeries 按时间框步长扫描序列，统计缺口、重复与乱序。
// 序列为空时返回零值报告；扫描本身从不失败，结果只用于日志与降级判断。
func CheckSeries(candles []Candle, interval string) IntegrityReport {
	var report IntegrityReport
	if len(candles) == 0 {
		return report
	}
	step := IntervalMillis(interval)
	report.Start = candles[0].OpenTime
	report.End = candles[len(candles)-1].OpenTime
	report.Present = int64(len(candles))
	if report.End >= report.Start && step > 0 {
		report.Expected = (report.End-report.Start)/step + 1
	}

	var gaps []Gap
	prev := candles[0].OpenTime
	for _, c := range candles[1:] {
		switch {
		case c.OpenTime == prev:
			report.Duplicates++
			continue
		case c.OpenTime < prev:
			report.OutOfOrder++
			continue
		}
		if missing := (c.OpenTime-prev)/step - 1; missing > 0 {
			gaps = append(gaps, Gap{
				From:  prev + step,
				To:    c.OpenTime - step,
				Count: missing,
			})
		}
		prev = c.OpenTime
	}
	report.Gaps = gaps
	return report
}
