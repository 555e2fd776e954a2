package confluence

import (
	"math"
	"testing"
)

// layerAt builds a scored layer the way runLayer would emit it.
func layerAt(name string, score float64) Layer {
	return Layer{
		Name:       name,
		Score:      score,
		Signal:     signalFor(score),
		Confidence: confidenceFor(score),
		Weight:     Weight(name),
	}
}

func rosterAt(score float64) []Layer {
	layers := make([]Layer, 0, len(layerOrder))
	for _, name := range layerOrder {
		layers = append(layers, layerAt(name, score))
	}
	return layers
}

func TestLayerWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, name := range LayerNames() {
		w := Weight(name)
		if w <= 0 {
			t.Fatalf("layer %s has non-positive weight %v", name, w)
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 1e-9 {
		t.Fatalf("weights should sum to 1.0, got %v", sum)
	}
}

func TestLayerNamesFixedRoster(t *testing.T) {
	want := []string{
		LayerSMC, LayerCVD, LayerMomentum, LayerStructure,
		LayerOI, LayerFunding, LayerInstFlow, LayerFibonacci,
	}
	got := LayerNames()
	if len(got) != len(want) {
		t.Fatalf("roster size = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("roster[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAggregateScoreBounds(t *testing.T) {
	for _, score := range []float64{0, 100} {
		got := Aggregate("BTCUSDT", "1h", rosterAt(score), 1)
		if got.OverallScore < 0 || got.OverallScore > 100 {
			t.Fatalf("overall out of bounds: %v", got.OverallScore)
		}
		if math.Abs(got.OverallScore-score) > 1e-6 {
			t.Fatalf("uniform roster at %v should average to itself, got %v", score, got.OverallScore)
		}
	}
}

func TestAggregateStrongBuyBoundary(t *testing.T) {
	strong := Aggregate("BTCUSDT", "1h", rosterAt(76), 1)
	if strong.Signal != SignalBuy {
		t.Fatalf("overall 76 signal = %s, want BUY", strong.Signal)
	}
	if strong.Confluence != StrengthStrong {
		t.Fatalf("overall 76 confluence = %s, want STRONG", strong.Confluence)
	}
	if strong.Recommendation != "strong_buy" {
		t.Fatalf("overall 76 recommendation = %s, want strong_buy", strong.Recommendation)
	}

	weak := Aggregate("BTCUSDT", "1h", rosterAt(74.9), 1)
	if weak.Confluence != StrengthWeak {
		t.Fatalf("overall 74.9 confluence = %s, want WEAK", weak.Confluence)
	}
	// Below the strong cut the layers still vote, and every layer leans buy.
	if weak.Signal != SignalBuy {
		t.Fatalf("overall 74.9 signal = %s, want BUY via layer vote", weak.Signal)
	}
	if weak.Recommendation != "buy" {
		t.Fatalf("overall 74.9 recommendation = %s, want buy", weak.Recommendation)
	}
}

func TestStrengthBoundaries(t *testing.T) {
	cases := []struct {
		overall float64
		want    Strength
	}{
		{75, StrengthStrong},
		{74.9, StrengthWeak},
		{25, StrengthStrong},
		{25.1, StrengthWeak},
		{60, StrengthWeak},
		{59.9, StrengthNeutral},
		{40, StrengthWeak},
		{40.1, StrengthNeutral},
		{50, StrengthNeutral},
	}
	for _, tc := range cases {
		if got := strengthFor(tc.overall); got != tc.want {
			t.Errorf("strengthFor(%v) = %s, want %s", tc.overall, got, tc.want)
		}
	}
}

func TestSignalVoteMajority(t *testing.T) {
	// Overall stays mid-band; direction comes from the weighted votes.
	layers := []Layer{
		layerAt(LayerSMC, 70),       // buy, vote 0.20*20 = 4
		layerAt(LayerCVD, 35),       // sell, vote 0.15*15 = 2.25
		layerAt(LayerMomentum, 50),  // hold, abstains
		layerAt(LayerStructure, 50), // hold, abstains
	}
	if got := signalVote(55, layers); got != SignalBuy {
		t.Fatalf("buy-majority vote = %s, want BUY", got)
	}

	layers[0] = layerAt(LayerSMC, 38) // sell, vote 0.20*12 = 2.4
	if got := signalVote(45, layers); got != SignalSell {
		t.Fatalf("sell-majority vote = %s, want SELL", got)
	}

	if got := signalVote(50, rosterAt(50)); got != SignalHold {
		t.Fatalf("all-neutral vote = %s, want HOLD", got)
	}
}

func TestSignalVoteExtremesSkipVoting(t *testing.T) {
	// An extreme overall decides outright even if the roster disagrees.
	sellers := rosterAt(30)
	if got := signalVote(75, sellers); got != SignalBuy {
		t.Fatalf("overall 75 = %s, want BUY regardless of votes", got)
	}
	buyers := rosterAt(70)
	if got := signalVote(25, buyers); got != SignalSell {
		t.Fatalf("overall 25 = %s, want SELL regardless of votes", got)
	}
}

func TestRiskLevels(t *testing.T) {
	// Alternating extremes: mean 50, variance 2500.
	scattered := make([]Layer, 0, len(layerOrder))
	for i, name := range layerOrder {
		score := 0.0
		if i%2 == 0 {
			score = 100
		}
		scattered = append(scattered, layerAt(name, score))
	}
	if got := riskFor(50, scattered); got != RiskHigh {
		t.Fatalf("variance 2500 risk = %s, want high", got)
	}

	// Half at 35, half at 65: mean 50, variance 225.
	split := make([]Layer, 0, len(layerOrder))
	for i, name := range layerOrder {
		score := 35.0
		if i%2 == 0 {
			score = 65
		}
		split = append(split, layerAt(name, score))
	}
	if got := riskFor(50, split); got != RiskMedium {
		t.Fatalf("variance 225 risk = %s, want medium", got)
	}

	if got := riskFor(92, rosterAt(92)); got != RiskHigh {
		t.Fatalf("overall 92 risk = %s, want high", got)
	}
	if got := riskFor(82, rosterAt(82)); got != RiskMedium {
		t.Fatalf("overall 82 risk = %s, want medium", got)
	}
	if got := riskFor(55, rosterAt(55)); got != RiskLow {
		t.Fatalf("tight cluster risk = %s, want low", got)
	}
}

func TestLayersPassedCountsAboveSixty(t *testing.T) {
	layers := []Layer{
		layerAt(LayerSMC, 61),
		layerAt(LayerCVD, 60), // boundary: not passed
		layerAt(LayerMomentum, 90),
		layerAt(LayerStructure, 10),
	}
	got := Aggregate("ETHUSDT", "4h", layers, 1)
	if got.LayersPassed != 2 {
		t.Fatalf("layers passed = %d, want 2", got.LayersPassed)
	}
}

func TestNeutralAnalysisShape(t *testing.T) {
	got := NeutralAnalysis("SOLUSDT", "1h", "pipeline down", 1234)
	if got.OverallScore != 50 {
		t.Fatalf("neutral overall = %v, want 50", got.OverallScore)
	}
	if got.Signal != SignalHold || got.Confluence != StrengthNeutral {
		t.Fatalf("neutral signal/confluence = %s/%s", got.Signal, got.Confluence)
	}
	if got.LayersPassed != 0 {
		t.Fatalf("neutral layers passed = %d, want 0", got.LayersPassed)
	}
	if got.RiskLevel != RiskLow {
		t.Fatalf("neutral risk = %s, want low", got.RiskLevel)
	}
	if got.Recommendation != "wait" {
		t.Fatalf("neutral recommendation = %s, want wait", got.Recommendation)
	}
	if got.Timestamp != 1234 {
		t.Fatalf("timestamp = %d, want 1234", got.Timestamp)
	}
	if len(got.Layers) != len(layerOrder) {
		t.Fatalf("neutral roster size = %d, want %d", len(got.Layers), len(layerOrder))
	}
	for i, l := range got.Layers {
		if l.Name != layerOrder[i] {
			t.Fatalf("layer[%d] = %s, want %s", i, l.Name, layerOrder[i])
		}
		if l.Score != 50 || l.Confidence != 25 || l.Signal != SignalHold {
			t.Fatalf("layer %s not neutral: %+v", l.Name, l)
		}
		if l.Note != "pipeline down" {
			t.Fatalf("layer %s note = %q", l.Name, l.Note)
		}
	}
}

func TestRecommendationMapping(t *testing.T) {
	cases := []struct {
		signal   Signal
		strength Strength
		risk     RiskLevel
		want     string
	}{
		{SignalBuy, StrengthStrong, RiskMedium, "strong_buy"},
		{SignalBuy, StrengthWeak, RiskLow, "buy"},
		{SignalSell, StrengthStrong, RiskHigh, "strong_sell"},
		{SignalSell, StrengthWeak, RiskLow, "sell"},
		{SignalHold, StrengthNeutral, RiskHigh, "stand_aside"},
		{SignalHold, StrengthNeutral, RiskLow, "wait"},
	}
	for _, tc := range cases {
		if got := recommendationFor(tc.signal, tc.strength, tc.risk); got != tc.want {
			t.Errorf("recommendationFor(%s, %s, %s) = %q, want %q", tc.signal, tc.strength, tc.risk, got, tc.want)
		}
	}
}
