package indicator

import (
	"math"
	"testing"

	"dualstrat/internal/model"
)

func TestATR_SeedIsMeanOfTrueRanges(t *testing.T) {
	atr := NewATR(14)

	// Constant 10-point range candles: every TR is 10, so the seed and all
	// smoothed values must equal 10.
	for i := 0; i < 20; i++ {
		atr.Update(model.Candle{Open: 100, High: 105, Low: 95, Close: 100})
		if i < 13 && atr.Ready() {
			t.Fatalf("candle %d: ready before 14-candle warm-up", i)
		}
	}
	if !atr.Ready() {
		t.Fatal("expected ATR ready after warm-up")
	}
	if math.Abs(atr.Value()-10.0) > 1e-9 {
		t.Errorf("expected ATR=10, got %.6f", atr.Value())
	}
}

func TestATR_GapUsesPrevClose(t *testing.T) {
	atr := NewATR(2)
	atr.Update(model.Candle{Open: 100, High: 101, Low: 99, Close: 100})
	// Gap up: H-L = 2 but H-prevClose = 10, TR must be 10.
	atr.Update(model.Candle{Open: 109, High: 110, Low: 108, Close: 109})
	want := (2.0 + 10.0) / 2.0
	if math.Abs(atr.Value()-want) > 1e-9 {
		t.Errorf("expected ATR=%.2f, got %.6f", want, atr.Value())
	}
}

func TestATR_NonNegative(t *testing.T) {
	atr := NewATR(14)
	prices := []float64{100, 90, 120, 95, 130, 85, 110, 105, 99, 140, 80, 125, 118, 92, 107, 113}
	for _, p := range prices {
		atr.Update(model.Candle{Open: p, High: p + 3, Low: p - 3, Close: p + 1})
		if atr.Value() < 0 {
			t.Fatalf("ATR went negative: %.6f", atr.Value())
		}
	}
}

func TestATR_WilderSmoothing(t *testing.T) {
	atr := NewATR(3)
	// TRs: 4, 4, 4 -> seed 4. Next candle with TR=7:
	// ATR = 4 + (7-4)/3 = 5.
	for i := 0; i < 3; i++ {
		atr.Update(model.Candle{Open: 100, High: 102, Low: 98, Close: 100})
	}
	atr.Update(model.Candle{Open: 100, High: 103.5, Low: 96.5, Close: 100})
	if math.Abs(atr.Value()-5.0) > 1e-9 {
		t.Errorf("expected ATR=5 after Wilder step, got %.6f", atr.Value())
	}
}
