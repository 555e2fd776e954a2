package orderflow

import (
	"strings"
	"testing"
	"time"
)

func csvFixtureBars(t *testing.T) []VolumeDeltaBar {
	t.Helper()
	ts1 := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC).UnixMilli()
	ts2 := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC).UnixMilli()
	return []VolumeDeltaBar{
		{
			Timestamp: ts1, Price: 64000,
			BuyVolume: 600, SellVolume: 400, NetVolume: 200, TotalVolume: 1000,
			CumulativeDelta: 200, AggressionRatio: 0.75, IsAbsorption: true,
		},
		{
			Timestamp: ts2, Price: 1234.5,
			BuyVolume: 100, SellVolume: 300, NetVolume: -200, TotalVolume: 400,
			CumulativeDelta: 0, AggressionRatio: 0.25, IsDistribution: true,
		},
	}
}

// TestBuildDeltaCSVRows 验证列头与行格式，价格用自动精度。
func TestBuildDeltaCSVRows(t *testing.T) {
	csv := BuildDeltaCSV(csvFixtureBars(t), DeltaCSVOptions{PricePrecision: PrecisionAuto})
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("应为 1 行列头 + 2 行数据, 实际=%d 行", len(lines))
	}
	wantHeader := "Time,Price,Buy,Sell,Net,Total,CumDelta,Aggression,Absorption,Distribution"
	if lines[0] != wantHeader {
		t.Fatalf("列头应为 %q, 实际=%q", wantHeader, lines[0])
	}
	// 最高价 64000 ≥ 1000 → 1 位小数，整数价尾随零被修剪。
	want1 := "03-15 09:30,64000,600,400,200,1000,200,0.7500,true,false"
	if lines[1] != want1 {
		t.Fatalf("首行应为 %q, 实际=%q", want1, lines[1])
	}
	want2 := "03-15 10:30,1234.5,100,300,-200,400,0,0.2500,false,true"
	if lines[2] != want2 {
		t.Fatalf("次行应为 %q, 实际=%q", want2, lines[2])
	}
}

// TestBuildDeltaCSVDateOnly 验证日期模式与自定义时区。
func TestBuildDeltaCSVDateOnly(t *testing.T) {
	csv := BuildDeltaCSV(csvFixtureBars(t), DeltaCSVOptions{
		DateOnly:       true,
		PricePrecision: PrecisionRaw,
	})
	lines := strings.Split(strings.TrimRight(csv, "\n"), "\n")
	if !strings.HasPrefix(lines[0], "Date,") {
		t.Fatalf("日期模式列头应以 Date 开头, 实际=%q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "24-03-15,") {
		t.Fatalf("日期标签应为 24-03-15, 实际=%q", lines[1])
	}

	east8 := time.FixedZone("UTC+8", 8*3600)
	shifted := BuildDeltaCSV(csvFixtureBars(t), DeltaCSVOptions{
		Location:       east8,
		PricePrecision: PrecisionRaw,
	})
	lines = strings.Split(strings.TrimRight(shifted, "\n"), "\n")
	if !strings.HasPrefix(lines[1], "03-15 17:30,") {
		t.Fatalf("东八区时间应为 17:30, 实际=%q", lines[1])
	}
}

// TestBuildDeltaCSVRawPrecision 验证小价格序列保留原始精度。
func TestBuildDeltaCSVRawPrecision(t *testing.T) {
	bars := []VolumeDeltaBar{{
		Timestamp: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC).UnixMilli(),
		Price:     0.123456, BuyVolume: 1, SellVolume: 1, TotalVolume: 2,
		AggressionRatio: 0.5,
	}}
	csv := BuildDeltaCSV(bars, DeltaCSVOptions{PricePrecision: PrecisionAuto})
	if !strings.Contains(csv, ",0.123456,") {
		t.Fatalf("价格 < 100 时应保留原始精度, 实际=%q", csv)
	}
}

// TestBuildDeltaCSVEmpty 验证空序列返回空串。
func TestBuildDeltaCSVEmpty(t *testing.T) {
	if got := BuildDeltaCSV(nil, DeltaCSVOptions{}); got != "" {
		t.Fatalf("空序列应返回空串, 实际=%q", got)
	}
}
