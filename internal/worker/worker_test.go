package worker

import (
	"context"
	"testing"
	"time"

	"dualstrat/config"
	"dualstrat/internal/arbiter"
	"dualstrat/internal/model"
	"dualstrat/internal/risk"
	"dualstrat/internal/session"
)

func testSetup(t *testing.T, mutate func(*config.StrategyFile)) (*Worker, *arbiter.Arbiter) {
	t.Helper()
	sf := config.DefaultStrategy()
	if mutate != nil {
		mutate(sf)
	}
	clock, err := session.New(sf.Arbiter.ContinuationHours, sf.Arbiter.ReversalWindows, sf.Arbiter.TZOffsetMinutes)
	if err != nil {
		t.Fatal(err)
	}
	cal, err := risk.NewCalendar(sf.RestrictedEvents)
	if err != nil {
		t.Fatal(err)
	}
	arb := arbiter.New(sf, clock, "EVAL")
	v := risk.NewValidator(sf, cal)
	inst := model.Instrument{Symbol: "NQ", TickSize: 0.25, TickValue: 5.0}
	return New(inst, sf, v, arb), arb
}

func TestNew_DetectorsFollowEnabledFlags(t *testing.T) {
	w, _ := testSetup(t, nil)
	if len(w.detectors) != 2 {
		t.Errorf("detectors = %d, want 2", len(w.detectors))
	}

	w, _ = testSetup(t, func(sf *config.StrategyFile) { sf.Continuation.Enabled = false })
	if len(w.detectors) != 1 {
		t.Errorf("detectors = %d, want 1 with continuation disabled", len(w.detectors))
	}
}

func TestWorker_GapInversionEndToEnd(t *testing.T) {
	w, arb := testSetup(t, func(sf *config.StrategyFile) {
		sf.GapInversion.RequireProbe = false
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go arb.Run(ctx)
	go w.Run(ctx)

	base := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	mk := func(i int, o, h, l, c float64) model.Candle {
		return model.Candle{
			Instrument: "NQ", TS: base.Add(time.Duration(i) * time.Minute),
			Open: o, High: h, Low: l, Close: c, Volume: 1000,
		}
	}

	in := w.Candles()
	for i := 0; i < 12; i++ {
		in <- mk(i, 20150, 20160, 20140, 20155)
	}
	in <- mk(12, 20175, 20180, 20170, 20178) // gap up
	in <- mk(13, 20177, 20178, 20148, 20150) // inversion

	deadline := time.After(2 * time.Second)
	for {
		if rec, ok := arb.Position("NQ"); ok {
			if rec.Direction != model.DirShort {
				t.Fatalf("direction = %s, want SHORT", rec.Direction)
			}
			if rec.Size != 1 {
				t.Fatalf("size = %d, want 1", rec.Size)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("no position opened within deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestWorker_DropsMalformedCandle(t *testing.T) {
	w, _ := testSetup(t, nil)

	// Feed directly: a bad candle must be dropped without advancing state.
	good := model.Candle{
		Instrument: "NQ", TS: time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC),
		Open: 20150, High: 20160, Low: 20140, Close: 20155, Volume: 1000,
	}
	w.process(context.Background(), good)

	bad := good
	bad.TS = good.TS // duplicate timestamp, non-monotonic
	w.process(context.Background(), bad)

	later := good
	later.TS = good.TS.Add(time.Minute)
	later.High = 20100 // below low
	later.Low = 20140
	w.process(context.Background(), later)
	// No panic and no state corruption is the contract here; detector-level
	// behavior is covered in the strategy package tests.
}
