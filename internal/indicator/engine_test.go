package indicator

import (
	"errors"
	"testing"
	"time"

	"dualstrat/internal/model"
)

func tsCandle(sec int, o, h, l, c, v float64) model.Candle {
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	return model.Candle{
		Instrument: "NQ",
		TS:         base.Add(time.Duration(sec) * time.Minute),
		Open:       o, High: h, Low: l, Close: c, Volume: v,
	}
}

func TestEngine_RejectsNonMonotonic(t *testing.T) {
	e := NewEngine("NQ", Config{})

	if _, err := e.Update(tsCandle(1, 100, 105, 95, 102, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	before := e.cvd.Value()

	// Same timestamp as the previous candle: must be dropped.
	_, err := e.Update(tsCandle(1, 102, 106, 99, 104, 10))
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DataError, got %v", err)
	}
	if e.cvd.Value() != before {
		t.Error("dropped candle mutated CVD state")
	}

	// Older timestamp: also dropped.
	if _, err := e.Update(tsCandle(0, 102, 106, 99, 104, 10)); err == nil {
		t.Error("expected error for out-of-order candle")
	}

	// Next in-order candle is accepted again.
	if _, err := e.Update(tsCandle(2, 102, 106, 99, 104, 10)); err != nil {
		t.Errorf("in-order candle rejected: %v", err)
	}
}

func TestEngine_RejectsMalformed(t *testing.T) {
	e := NewEngine("NQ", Config{})
	tests := []model.Candle{
		{},                                      // zero timestamp
		tsCandle(1, -1, 105, 95, 100, 10),       // negative price
		tsCandle(2, 100, 95, 105, 100, 10),      // high below low
		tsCandle(3, 100, 105, 95, 100, -5),      // negative volume
	}
	for i, c := range tests {
		if _, err := e.Update(c); err == nil {
			t.Errorf("case %d: expected rejection", i)
		}
	}
}

func TestEngine_ATRWarmup(t *testing.T) {
	e := NewEngine("NQ", Config{ATRPeriod: 14})
	for i := 0; i < 20; i++ {
		snap, err := e.Update(tsCandle(i, 100, 105, 95, 100, 10))
		if err != nil {
			t.Fatalf("candle %d: %v", i, err)
		}
		if i >= 13 {
			if !snap.ATRReady {
				t.Errorf("candle %d: expected ATR ready", i)
			}
			if snap.ATR < 0 {
				t.Errorf("candle %d: negative ATR %.4f", i, snap.ATR)
			}
		}
	}
}

func TestEngine_DivergenceFlag(t *testing.T) {
	e := NewEngine("NQ", Config{DivergeLen: 5})

	// Price rising while every candle closes on its low: CVD falls.
	price := 100.0
	var snap Snapshot
	var err error
	for i := 0; i < 10; i++ {
		snap, err = e.Update(tsCandle(i, price, price+5, price-1, price-1+0.01, 100))
		if err != nil {
			t.Fatalf("candle %d: %v", i, err)
		}
		price += 2
	}
	if !snap.Divergence {
		t.Error("expected divergence: price up, CVD down")
	}

	// Aligned trend: price rising with closes near highs.
	e2 := NewEngine("NQ", Config{DivergeLen: 5})
	price = 100.0
	for i := 0; i < 10; i++ {
		snap, err = e2.Update(tsCandle(i, price, price+5, price-1, price+4.9, 100))
		if err != nil {
			t.Fatalf("candle %d: %v", i, err)
		}
		price += 2
	}
	if snap.Divergence {
		t.Error("unexpected divergence on aligned trend")
	}
}
