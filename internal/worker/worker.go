// Package worker runs one instrument's signal pipeline: candles feed the
// indicator engine, detectors consume the snapshots, and validated signals
// are submitted to the arbiter. Each worker exclusively owns its indicator
// and detector state, so workers run in parallel with no shared locks.
package worker

import (
	"context"
	"errors"
	"log/slog"

	"dualstrat/config"
	"dualstrat/internal/arbiter"
	"dualstrat/internal/indicator"
	"dualstrat/internal/logger"
	"dualstrat/internal/metrics"
	"dualstrat/internal/model"
	"dualstrat/internal/risk"
	"dualstrat/internal/strategy"
)

// Worker is a single-instrument pipeline.
type Worker struct {
	inst      model.Instrument
	engine    *indicator.Engine
	detectors []strategy.Detector
	validator *risk.Validator
	arb       *arbiter.Arbiter

	in    chan model.Candle
	reset chan struct{}
}

// New builds the pipeline for one instrument from the strategy file.
// Disabled detectors are not constructed.
func New(inst model.Instrument, sf *config.StrategyFile, v *risk.Validator, arb *arbiter.Arbiter) *Worker {
	var detectors []strategy.Detector
	if sf.Continuation.Enabled {
		detectors = append(detectors, strategy.NewContinuation(inst, sf.Continuation, sf.Account.MaxRiskUSD))
	}
	if sf.GapInversion.Enabled {
		detectors = append(detectors, strategy.NewGapInversion(inst, sf.GapInversion, sf.Account.MaxRiskUSD))
	}
	return &Worker{
		inst:      inst,
		engine:    indicator.NewEngine(inst.Symbol, indicator.Config{}),
		detectors: detectors,
		validator: v,
		arb:       arb,
		in:        make(chan model.Candle, 128),
		reset:     make(chan struct{}, 1),
	}
}

// Candles returns the input channel for completed candles.
func (w *Worker) Candles() chan<- model.Candle {
	return w.in
}

// ResetSession asks the worker to clear detector state at session start.
// Non-blocking; coalesces if a reset is already pending.
func (w *Worker) ResetSession() {
	select {
	case w.reset <- struct{}{}:
	default:
	}
}

// Run processes candles in arrival order until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("worker started", "instrument", w.inst.Symbol, "detectors", len(w.detectors))
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped", "instrument", w.inst.Symbol)
			return
		case <-w.reset:
			for _, det := range w.detectors {
				det.Reset()
			}
			slog.Info("detector state reset", "instrument", w.inst.Symbol)
		case c := <-w.in:
			w.process(ctx, c)
		}
	}
}

func (w *Worker) process(ctx context.Context, c model.Candle) {
	snap, err := w.engine.Update(c)
	if err != nil {
		var de *indicator.DataError
		if errors.As(err, &de) {
			metrics.DataErrors.WithLabelValues(w.inst.Symbol).Inc()
			slog.Warn("candle dropped", "instrument", de.Instrument, "reason", de.Reason)
			return
		}
		slog.Error("indicator update failed", "instrument", w.inst.Symbol, "err", err)
		return
	}
	metrics.CandlesProcessed.WithLabelValues(w.inst.Symbol).Inc()

	for _, det := range w.detectors {
		sig := det.OnCandle(c, snap)
		if sig == nil {
			continue
		}
		metrics.SignalsGenerated.WithLabelValues(sig.StrategyID, sig.Instrument).Inc()

		sctx := logger.WithSignalID(ctx, sig.SignalID)
		vs, rej := w.validator.Validate(sig, w.arb.Account())
		if rej != nil {
			metrics.SignalsRejected.WithLabelValues(rej.Reason).Inc()
			slog.Warn("signal failed validation",
				append([]any{"reason", rej.Reason, "detail", rej.Detail}, logger.WithTrace(sctx)...)...)
			continue
		}
		slog.Info("signal validated",
			append([]any{
				"strategy", vs.StrategyID, "instrument", vs.Instrument,
				"direction", vs.Direction, "size", vs.PositionSize,
				"entry", vs.Entry, "stop", vs.Stop, "r", vs.RMultiple(),
			}, logger.WithTrace(sctx)...)...)
		w.arb.Submit(vs)
	}
}
