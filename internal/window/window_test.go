package window

import (
	"testing"

	"dualstrat/internal/model"
)

func candle(h, l float64) model.Candle {
	return model.Candle{High: h, Low: l}
}

func TestWindow_AppendAndEvict(t *testing.T) {
	w := New(4)
	for i := 0; i < 6; i++ {
		w.Append(candle(float64(i), float64(i)))
	}
	if w.Len() != 4 {
		t.Fatalf("expected len=4, got %d", w.Len())
	}
	// Oldest surviving candle should be #2
	c, ok := w.At(0)
	if !ok || c.High != 2 {
		t.Errorf("expected oldest high=2, got %v (ok=%v)", c.High, ok)
	}
	last, ok := w.Last()
	if !ok || last.High != 5 {
		t.Errorf("expected last high=5, got %v", last.High)
	}
}

func TestWindow_SwingScans(t *testing.T) {
	w := New(8)
	highs := []float64{10, 15, 12, 20, 11}
	for _, h := range highs {
		w.Append(candle(h, h-5))
	}

	hh, ok := w.HighestHigh(5, 0)
	if !ok || hh != 20 {
		t.Errorf("expected highest=20, got %v", hh)
	}

	// Excluding the last candle must not change the answer here
	hh, ok = w.HighestHigh(5, 1)
	if !ok || hh != 20 {
		t.Errorf("expected highest=20 with skipLast=1, got %v", hh)
	}

	ll, ok := w.LowestLow(3, 0)
	if !ok || ll != 6 {
		t.Errorf("expected lowest=6 over last 3, got %v", ll)
	}
}

func TestWindow_ScanEmpty(t *testing.T) {
	w := New(4)
	if _, ok := w.HighestHigh(3, 0); ok {
		t.Error("expected ok=false on empty window")
	}
	w.Append(candle(1, 0))
	if _, ok := w.LowestLow(3, 1); ok {
		t.Error("expected ok=false when skipLast consumes all candles")
	}
}
