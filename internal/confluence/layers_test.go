package confluence

import (
	"errors"
	"math"
	"testing"
	"time"

	"riptide/internal/market"
)

// hourlyCandles builds n closed hourly candles and lets the caller mutate
// each one. Defaults: flat at 100 with volume 100.
func hourlyCandles(t *testing.T, n int, fn func(i int, c *market.Candle)) []market.Candle {
	t.Helper()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	const hour = int64(time.Hour / time.Millisecond)
	out := make([]market.Candle, n)
	for i := range out {
		c := market.Candle{
			OpenTime:  base + int64(i)*hour,
			CloseTime: base + int64(i+1)*hour - 1,
			Open:      100,
			High:      101,
			Low:       99,
			Close:     100,
			Volume:    100,
		}
		if fn != nil {
			fn(i, &c)
		}
		out[i] = c
	}
	return out
}

func layerByName(t *testing.T, layers []Layer, name string) Layer {
	t.Helper()
	for _, l := range layers {
		if l.Name == name {
			return l
		}
	}
	t.Fatalf("layer %s missing from roster", name)
	return Layer{}
}

func TestFallbackLayerShape(t *testing.T) {
	got := FallbackLayer(LayerFunding, "rate limited")
	if got.Score != 50 || got.Signal != SignalHold || got.Confidence != 25 {
		t.Fatalf("fallback not neutral: %+v", got)
	}
	if got.Weight != weightFunding {
		t.Fatalf("fallback weight = %v, want %v", got.Weight, weightFunding)
	}
	if got.Note != "rate limited" {
		t.Fatalf("fallback note = %q", got.Note)
	}
}

func TestSafeLayerRecoversPanic(t *testing.T) {
	got := safeLayer(LayerCVD, func(layerInput) (Layer, error) {
		panic("boom")
	}, layerInput{symbol: "BTCUSDT"})
	if got.Score != 50 || got.Signal != SignalHold {
		t.Fatalf("panicking layer should fall back to neutral, got %+v", got)
	}
	if got.Note != "panic: boom" {
		t.Fatalf("note = %q, want panic: boom", got.Note)
	}
}

func TestSafeLayerFillsDefaultsAndClamps(t *testing.T) {
	got := safeLayer(LayerCVD, func(layerInput) (Layer, error) {
		return Layer{Score: 130}, nil
	}, layerInput{})
	if got.Score != 100 {
		t.Fatalf("score should clamp to 100, got %v", got.Score)
	}
	if got.Name != LayerCVD || got.Weight != weightCVD {
		t.Fatalf("name/weight not filled: %+v", got)
	}
	if got.Signal != SignalBuy {
		t.Fatalf("signal should derive from score, got %s", got.Signal)
	}
	if got.Confidence != 95 {
		t.Fatalf("confidence = %v, want 95", got.Confidence)
	}
}

func TestSafeLayerDegradesOnError(t *testing.T) {
	got := safeLayer(LayerOI, func(layerInput) (Layer, error) {
		return Layer{}, errors.New("no data")
	}, layerInput{})
	if got.Score != 50 || got.Note != "no data" {
		t.Fatalf("error should degrade to fallback: %+v", got)
	}
}

func TestRunLayerUnknownName(t *testing.T) {
	got := runLayer("moon_phase", layerInput{})
	if got.Score != 50 || got.Note != "unknown layer" {
		t.Fatalf("unknown layer should fall back: %+v", got)
	}
}

func TestComputeLayersRosterOrder(t *testing.T) {
	in := newLayerInput("BTCUSDT", "1h", nil)
	layers := computeLayers(in)
	if len(layers) != len(layerOrder) {
		t.Fatalf("roster size = %d, want %d", len(layers), len(layerOrder))
	}
	for i, l := range layers {
		if l.Name != layerOrder[i] {
			t.Fatalf("layer[%d] = %s, want %s", i, l.Name, layerOrder[i])
		}
	}
}

func TestSignalForBands(t *testing.T) {
	cases := []struct {
		score float64
		want  Signal
	}{
		{60.1, SignalBuy},
		{60, SignalHold},
		{50, SignalHold},
		{40, SignalHold},
		{39.9, SignalSell},
	}
	for _, tc := range cases {
		if got := signalFor(tc.score); got != tc.want {
			t.Errorf("signalFor(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestConfidenceForScale(t *testing.T) {
	cases := []struct {
		score float64
		want  float64
	}{
		{50, 40},
		{75, 70},
		{10, 88},
		{100, 95},
		{0, 95},
	}
	for _, tc := range cases {
		if got := confidenceFor(tc.score); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("confidenceFor(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestNewLayerInputExtractsSeries(t *testing.T) {
	candles := hourlyCandles(t, 3, func(i int, c *market.Candle) {
		c.Close = 100 + float64(i)
		c.High = 110 + float64(i)
		c.Low = 90 + float64(i)
		c.Volume = float64(1000 * (i + 1))
	})
	in := newLayerInput("BTCUSDT", "1h", candles)
	if len(in.closes) != 3 || len(in.highs) != 3 || len(in.lows) != 3 || len(in.volumes) != 3 {
		t.Fatalf("series lengths wrong: %d/%d/%d/%d", len(in.closes), len(in.highs), len(in.lows), len(in.volumes))
	}
	if in.closes[2] != 102 || in.highs[1] != 111 || in.lows[0] != 90 || in.volumes[2] != 3000 {
		t.Fatalf("series values wrong: %+v", in)
	}
	if in.lastClose() != 102 {
		t.Fatalf("lastClose = %v, want 102", in.lastClose())
	}
	if (layerInput{}).lastClose() != 0 {
		t.Fatal("empty input lastClose should be 0")
	}
}

func TestSeriesHelpers(t *testing.T) {
	if v, ok := lastValid([]float64{1, 2, math.NaN()}); !ok || v != 2 {
		t.Fatalf("lastValid = %v/%v, want 2/true", v, ok)
	}
	if _, ok := lastValid([]float64{math.NaN()}); ok {
		t.Fatal("all-NaN series should report no valid value")
	}

	if got := pctChange(0, 5); got != 0 {
		t.Fatalf("pctChange(0, 5) = %v, want 0", got)
	}
	if got := pctChange(100, 110); math.Abs(got-10) > 1e-9 {
		t.Fatalf("pctChange(100, 110) = %v, want 10", got)
	}
}
