// cmd/replay runs the signal core over a CSV candle file to validate detector
// and arbiter behavior without live market data. Fills are simulated at
// candle-touch granularity: a candle whose range crosses the working stop or
// the next take-profit rung reports a fill at that price, stop first.
//
// Usage:
//
//	go run ./cmd/replay --file=data/nq_1m.csv --strategy=config/strategy.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"dualstrat/config"
	"dualstrat/internal/arbiter"
	"dualstrat/internal/feed"
	"dualstrat/internal/journal"
	"dualstrat/internal/logger"
	"dualstrat/internal/model"
	"dualstrat/internal/risk"
	"dualstrat/internal/session"
	"dualstrat/internal/worker"
)

func main() {
	file := flag.String("file", "", "CSV candle file: instrument,ts,open,high,low,close,volume")
	strategyFile := flag.String("strategy", "config/strategy.yaml", "YAML trading parameter file")
	dbPath := flag.String("db", "", "optional SQLite journal path")
	verbose := flag.Bool("v", false, "log every decision and event")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger.Init("replay", level)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "replay: --file is required")
		os.Exit(2)
	}
	sf, err := config.LoadStrategy(*strategyFile)
	if err != nil {
		fatal("strategy file", err)
	}

	clock, err := session.New(sf.Arbiter.ContinuationHours, sf.Arbiter.ReversalWindows, sf.Arbiter.TZOffsetMinutes)
	if err != nil {
		fatal("priority windows", err)
	}
	cal, err := risk.NewCalendar(sf.RestrictedEvents)
	if err != nil {
		fatal("restricted events", err)
	}
	validator := risk.NewValidator(sf, cal)

	var jrnl *journal.Journal
	if *dbPath != "" {
		jrnl, err = journal.Open(*dbPath)
		if err != nil {
			fatal("journal", err)
		}
		defer jrnl.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	arb := arbiter.New(sf, clock, "EVAL")
	go arb.Run(ctx)

	var decisions atomic.Int64
	go func() {
		for d := range arb.Decisions() {
			decisions.Add(1)
			if jrnl != nil {
				if err := jrnl.RecordDecision(d); err != nil {
					slog.Warn("journal decision write failed", "err", err)
				}
			}
			fmt.Printf("[%s] %-8s %-6s %-8s size=%d %s\n",
				d.DecidedAt.Format("2006-01-02 15:04"), d.Status, d.Instrument,
				d.StrategyID, d.ResultingPos, d.Reason)
		}
	}()
	go func() {
		for ev := range arb.Events() {
			if jrnl != nil {
				eventType, symbol := eventMeta(ev)
				if err := jrnl.RecordEvent(eventType, symbol, model.MarshalEvent(ev)); err != nil {
					slog.Warn("journal event write failed", "err", err)
				}
			}
			if *verbose {
				fmt.Printf("  event: %s\n", model.MarshalEvent(ev))
			}
		}
	}()

	workers := make(map[string]*worker.Worker, len(sf.Instruments))
	for sym, spec := range sf.Instruments {
		inst := model.Instrument{Symbol: sym, TickSize: spec.TickSize, TickValue: spec.TickValue}
		w := worker.New(inst, sf, validator, arb)
		workers[sym] = w
		go w.Run(ctx)
	}

	candles := make(chan model.Candle, 1024)
	go func() {
		defer close(candles)
		if err := feed.Replay(ctx, *file, candles); err != nil {
			slog.Error("replay read failed", "err", err)
		}
	}()

	fed := 0
	for c := range candles {
		w, ok := workers[c.Instrument]
		if !ok {
			continue
		}
		w.Candles() <- c
		fed++
		simulateFills(arb, c)
	}

	// Let the pipeline drain before reading the final counters.
	time.Sleep(500 * time.Millisecond)
	stats := arb.Snapshot()
	acct := arb.Account()

	fmt.Println()
	fmt.Printf("candles fed:       %d\n", fed)
	fmt.Printf("decisions:         %d\n", decisions.Load())
	fmt.Printf("accepted/merged:   %d/%d\n", stats.Accepted, stats.Merged)
	fmt.Printf("rejected:          %d\n", stats.Rejected)
	fmt.Printf("closed:            %d\n", stats.Closed)
	fmt.Printf("realized loss:     $%.2f\n", acct.RealizedDailyLoss)
	for _, rec := range arb.OpenPositions() {
		fmt.Printf("still open:        %s %s size=%d entry=%.2f stop=%.2f\n",
			rec.Instrument, rec.Direction, rec.Size, rec.Entry, rec.Stop)
	}
	cancel()
}

// simulateFills reports a stop or take-profit touch on the current candle.
// The position snapshot can lag the worker by a candle at full speed; a
// missed touch is picked up on a later candle since the levels persist.
func simulateFills(arb *arbiter.Arbiter, c model.Candle) {
	rec, ok := arb.Position(c.Instrument)
	if !ok {
		return
	}
	stopTouched := c.Low <= rec.Stop
	if rec.Direction == model.DirShort {
		stopTouched = c.High >= rec.Stop
	}
	if stopTouched {
		arb.OnFill(arbiter.FillEvent{
			Instrument: c.Instrument, Kind: arbiter.FillStop, Price: rec.Stop, TS: c.TS,
		})
		return
	}
	if len(rec.TakeProfits) == 0 {
		return
	}
	tp := rec.TakeProfits[0].Price
	tpTouched := c.High >= tp
	if rec.Direction == model.DirShort {
		tpTouched = c.Low <= tp
	}
	if tpTouched {
		arb.OnFill(arbiter.FillEvent{
			Instrument: c.Instrument, Kind: arbiter.FillTP, Price: tp, ATR: c.High - c.Low, TS: c.TS,
		})
	}
}

func eventMeta(ev any) (string, string) {
	switch e := ev.(type) {
	case model.NewPositionEvent:
		return e.Event, e.Symbol
	case model.TPFilledEvent:
		return e.Event, e.Symbol
	case model.StopUpdateEvent:
		return e.Event, e.Symbol
	case model.CloseTradeEvent:
		return e.Event, e.Symbol
	default:
		return "UNKNOWN", ""
	}
}

func fatal(what string, err error) {
	slog.Error(what+" init failed", "err", err)
	os.Exit(1)
}
