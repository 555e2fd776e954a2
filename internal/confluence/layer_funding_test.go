package confluence

import (
	"errors"
	"testing"

	"riptide/internal/market"
)

func TestScoreFundingContrarianSteps(t *testing.T) {
	// Positive funding reads as crowded longs, negative as crowded shorts;
	// the adjustment steps up at the mild/elevated/extreme thresholds.
	cases := []struct {
		rate float64
		want float64
	}{
		{0, 50},
		{0.00009, 50},
		{0.0001, 42},
		{-0.0001, 58},
		{0.0005, 30},
		{-0.0006, 70},
		{0.001, 15},
		{-0.002, 85},
	}
	for _, tc := range cases {
		in := layerInput{funding: &market.FundingRate{Symbol: "BTCUSDT", Rate: tc.rate}}
		got, err := scoreFunding(in)
		if err != nil {
			t.Fatalf("rate %v: scoreFunding: %v", tc.rate, err)
		}
		if got.Score != tc.want {
			t.Errorf("rate %v: score = %v, want %v", tc.rate, got.Score, tc.want)
		}
	}
}

func TestScoreFundingDetails(t *testing.T) {
	in := layerInput{funding: &market.FundingRate{Rate: 0.0005}}
	got, err := scoreFunding(in)
	if err != nil {
		t.Fatalf("scoreFunding: %v", err)
	}
	if got.Details["rate_bps"] != 5 {
		t.Fatalf("rate_bps = %v, want 5", got.Details["rate_bps"])
	}
	if got.Details["adj"] != -20 {
		t.Fatalf("adj = %v, want -20", got.Details["adj"])
	}
}

func TestScoreFundingUnavailable(t *testing.T) {
	if _, err := scoreFunding(layerInput{}); !errors.Is(err, errNoFunding) {
		t.Fatalf("err = %v, want errNoFunding", err)
	}
}
