package confluence

import (
	"errors"
	"testing"

	"riptide/internal/market"
)

func TestScoreMomentumUptrend(t *testing.T) {
	candles := hourlyCandles(t, 40, func(i int, c *market.Candle) {
		c.Close = 100 + float64(i)
		c.Open = c.Close - 1
		c.High = c.Close + 1
		c.Low = c.Open - 1
	})
	got, err := scoreMomentum(newLayerInput("BTCUSDT", "1h", candles))
	if err != nil {
		t.Fatalf("scoreMomentum: %v", err)
	}
	// Monotone rise: RSI pinned at the top, positive histogram, positive ROC.
	if got.Score <= 70 {
		t.Fatalf("uptrend score = %v, want > 70", got.Score)
	}
	if got.Details["rsi"] < 90 {
		t.Fatalf("rsi = %v, want > 90 on a monotone rise", got.Details["rsi"])
	}
	if got.Details["macd_hist_adj"] != 8 {
		t.Fatalf("macd_hist_adj = %v, want 8", got.Details["macd_hist_adj"])
	}
	if got.Details["roc_adj"] <= 0 {
		t.Fatalf("roc_adj = %v, want positive", got.Details["roc_adj"])
	}
}

func TestScoreMomentumDowntrend(t *testing.T) {
	candles := hourlyCandles(t, 40, func(i int, c *market.Candle) {
		c.Close = 140 - float64(i)
		c.Open = c.Close + 1
		c.High = c.Open + 1
		c.Low = c.Close - 1
	})
	got, err := scoreMomentum(newLayerInput("BTCUSDT", "1h", candles))
	if err != nil {
		t.Fatalf("scoreMomentum: %v", err)
	}
	if got.Score >= 30 {
		t.Fatalf("downtrend score = %v, want < 30", got.Score)
	}
	if got.Details["macd_hist_adj"] != -8 {
		t.Fatalf("macd_hist_adj = %v, want -8", got.Details["macd_hist_adj"])
	}
}

func TestScoreMomentumInsufficientCandles(t *testing.T) {
	in := newLayerInput("BTCUSDT", "1h", hourlyCandles(t, momentumMinBars-1, nil))
	if _, err := scoreMomentum(in); !errors.Is(err, errInsufficientCandles) {
		t.Fatalf("err = %v, want errInsufficientCandles", err)
	}
}
