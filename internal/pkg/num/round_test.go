package num

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestRoundTo(t *testing.T) {
	cases := []struct {
		v        float64
		decimals int
		want     float64
	}{
		{1.2345, 2, 1.23},
		{1.2355, 2, 1.24},
		{-1.2355, 2, -1.24},
		{1.5, 0, 2},
		{1.4, -1, 1},
	}
	for _, tc := range cases {
		if got := RoundTo(tc.v, tc.decimals); !almostEqual(got, tc.want) {
			t.Errorf("RoundTo(%v, %d) = %v, want %v", tc.v, tc.decimals, got, tc.want)
		}
	}
}

func TestPriceDecimals(t *testing.T) {
	cases := []struct {
		price float64
		want  int
	}{
		{65000, 1},
		{250.5, 2},
		{3.14, 4},
		{0.00012345, 6},
	}
	for _, tc := range cases {
		if got := PriceDecimals(tc.price); got != tc.want {
			t.Errorf("PriceDecimals(%v) = %d, want %d", tc.price, got, tc.want)
		}
	}
}

func TestRoundPrice(t *testing.T) {
	if got := RoundPrice(65123.456); !almostEqual(got, 65123.5) {
		t.Errorf("RoundPrice(65123.456) = %v, want 65123.5", got)
	}
	if got := RoundPrice(0.12345678); !almostEqual(got, 0.123457) {
		t.Errorf("RoundPrice(0.12345678) = %v, want 0.123457", got)
	}
}
