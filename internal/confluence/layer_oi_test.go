package confluence

import (
	"errors"
	"math"
	"testing"

	"riptide/internal/market"
)

// oiSeries builds a linear open-interest history from first to last.
func oiSeries(first, last float64, n int) []market.OpenInterestPoint {
	out := make([]market.OpenInterestPoint, n)
	step := (last - first) / float64(n-1)
	for i := range out {
		out[i] = market.OpenInterestPoint{
			Symbol:          "BTCUSDT",
			SumOpenInterest: first + step*float64(i),
			Timestamp:       int64(i) * 3600_000,
		}
	}
	return out
}

func TestScoreOpenInterestRegimes(t *testing.T) {
	rising := hourlyCandles(t, 30, func(i int, c *market.Candle) {
		c.Close = 100 + float64(i)
	})
	falling := hourlyCandles(t, 30, func(i int, c *market.Candle) {
		c.Close = 130 - float64(i)
	})

	cases := []struct {
		name    string
		candles []market.Candle
		oi      []market.OpenInterestPoint
		want    float64
		regime  float64
	}{
		{"new longs", rising, oiSeries(100, 105, 24), 65, 1},
		{"new shorts", falling, oiSeries(100, 105, 24), 35, -1},
		{"short covering", rising, oiSeries(105, 99.75, 24), 42.5, -0.5},
		{"long liquidation", falling, oiSeries(105, 99.75, 24), 57.5, 0.5},
		{"flat oi", rising, oiSeries(100, 100.5, 24), 50, 0},
	}
	for _, tc := range cases {
		in := newLayerInput("BTCUSDT", "1h", tc.candles)
		in.oi = tc.oi
		got, err := scoreOpenInterest(in)
		if err != nil {
			t.Fatalf("%s: scoreOpenInterest: %v", tc.name, err)
		}
		if math.Abs(got.Score-tc.want) > 1e-9 {
			t.Errorf("%s: score = %v, want %v", tc.name, got.Score, tc.want)
		}
		if got.Details["regime"] != tc.regime {
			t.Errorf("%s: regime = %v, want %v", tc.name, got.Details["regime"], tc.regime)
		}
	}
}

func TestScoreOpenInterestCapsAdjustment(t *testing.T) {
	candles := hourlyCandles(t, 30, func(i int, c *market.Candle) {
		c.Close = 100 + float64(i)
	})
	in := newLayerInput("BTCUSDT", "1h", candles)
	in.oi = oiSeries(100, 150, 24) // +50%, far beyond the cap
	got, err := scoreOpenInterest(in)
	if err != nil {
		t.Fatalf("scoreOpenInterest: %v", err)
	}
	if got.Score != 80 {
		t.Fatalf("score = %v, want capped 80", got.Score)
	}
}

func TestScoreOpenInterestUnavailable(t *testing.T) {
	candles := hourlyCandles(t, 30, nil)

	in := newLayerInput("BTCUSDT", "1h", candles)
	if _, err := scoreOpenInterest(in); !errors.Is(err, errNoOpenInterest) {
		t.Fatalf("nil series err = %v, want errNoOpenInterest", err)
	}

	in.oi = oiSeries(0, 0, 24)
	if _, err := scoreOpenInterest(in); !errors.Is(err, errNoOpenInterest) {
		t.Fatalf("zero baseline err = %v, want errNoOpenInterest", err)
	}
}
