package indicator

import (
	"math"
	"testing"

	"dualstrat/internal/model"
)

func TestCVD_DeltaMatchesAccumulation(t *testing.T) {
	cvd := NewCVD(64)
	candles := []model.Candle{
		{Open: 100, High: 110, Low: 100, Close: 110, Volume: 1000}, // full buy
		{Open: 110, High: 110, Low: 100, Close: 100, Volume: 500},  // full sell
		{Open: 100, High: 104, Low: 96, Close: 102, Volume: 800},   // mixed
	}

	prev := 0.0
	for i, c := range candles {
		cvd.Update(c)
		got := cvd.Value() - prev
		want := Delta(c)
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("candle %d: cumulative step %.4f != delta %.4f", i, got, want)
		}
		prev = cvd.Value()
	}
}

func TestDelta_Extremes(t *testing.T) {
	tests := []struct {
		name   string
		candle model.Candle
		want   float64
	}{
		{"close at high", model.Candle{High: 110, Low: 100, Close: 110, Volume: 1000}, 1000},
		{"close at low", model.Candle{High: 110, Low: 100, Close: 100, Volume: 1000}, -1000},
		{"midpoint", model.Candle{High: 110, Low: 100, Close: 105, Volume: 1000}, 0},
		{"flat candle", model.Candle{High: 100, Low: 100, Close: 100, Volume: 1000}, 0},
	}
	for _, tt := range tests {
		if got := Delta(tt.candle); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%s: expected delta=%.1f, got %.4f", tt.name, tt.want, got)
		}
	}
}

func TestCVD_SlopeSign(t *testing.T) {
	cvd := NewCVD(64)
	// Steadily buying pressure -> rising cumulative -> positive slope.
	for i := 0; i < 10; i++ {
		cvd.Update(model.Candle{High: 110, Low: 100, Close: 110, Volume: 100})
	}
	if s := cvd.Slope(5); s <= 0 {
		t.Errorf("expected positive slope, got %.4f", s)
	}

	cvd.Reset()
	for i := 0; i < 10; i++ {
		cvd.Update(model.Candle{High: 110, Low: 100, Close: 100, Volume: 100})
	}
	if s := cvd.Slope(5); s >= 0 {
		t.Errorf("expected negative slope, got %.4f", s)
	}
}
