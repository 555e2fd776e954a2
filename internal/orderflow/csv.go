package orderflow

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DeltaCSVOptions 控制 delta 序列 CSV 的时间格式与精度。
type DeltaCSVOptions struct {
	DateOnly       bool
	Location       *time.Location
	PricePrecision int
}

const (
	// PrecisionAuto 根据序列价格区间自动决定精度。
	PrecisionAuto = math.MinInt32
	// PrecisionRaw 表示保留原始精度（等价于 strconv.FormatFloat(..., -1, 64)）
	PrecisionRaw = -1
)

// BuildDeltaCSV 生成 delta 序列的 CSV 数据，首行包含列头。
// 供导出接口与离线核对使用。
func BuildDeltaCSV(bars []VolumeDeltaBar, opts DeltaCSVOptions) string {
	if len(bars) == 0 {
		return ""
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	precision := opts.PricePrecision
	if precision == PrecisionAuto {
		precision = autoPrecisionFromBars(bars)
	}
	header := "Time"
	if opts.DateOnly {
		header = "Date"
	}
	var b strings.Builder
	b.WriteString(header + ",Price,Buy,Sell,Net,Total,CumDelta,Aggression,Absorption,Distribution\n")
	for _, bar := range bars {
		ts := time.UnixMilli(bar.Timestamp).In(loc)
		label := ts.Format("01-02 15:04")
		if opts.DateOnly {
			label = ts.Format("06-01-02")
		}
		b.WriteString(label)
		b.WriteByte(',')
		b.WriteString(formatPrice(bar.Price, precision))
		b.WriteByte(',')
		b.WriteString(formatPlainFloat(bar.BuyVolume))
		b.WriteByte(',')
		b.WriteString(formatPlainFloat(bar.SellVolume))
		b.WriteByte(',')
		b.WriteString(formatPlainFloat(bar.NetVolume))
		b.WriteByte(',')
		b.WriteString(formatPlainFloat(bar.TotalVolume))
		b.WriteByte(',')
		b.WriteString(formatPlainFloat(bar.CumulativeDelta))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(bar.AggressionRatio, 'f', 4, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatBool(bar.IsAbsorption))
		b.WriteByte(',')
		b.WriteString(strconv.FormatBool(bar.IsDistribution))
		b.WriteByte('\n')
	}
	return b.String()
}

func autoPrecisionFromBars(bars []VolumeDeltaBar) int {
	maxVal := 0.0
	for _, bar := range bars {
		abs := math.Abs(bar.Price)
		if abs > maxVal {
			maxVal = abs
		}
	}
	switch {
	case maxVal >= 1000:
		return 1
	case maxVal >= 100:
		return 2
	default:
		return PrecisionRaw
	}
}

func formatPrice(value float64, precision int) string {
	if precision == PrecisionRaw {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	s := strconv.FormatFloat(value, 'f', precision, 64)
	if precision > 0 {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

func formatPlainFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
