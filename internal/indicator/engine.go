// Package indicator provides incremental indicator calculations over candle
// data: Wilder ATR for volatility and CVD for order-flow pressure, plus a
// price/CVD divergence check used by the pattern detectors.
//
// An Engine instance is exclusively owned by one instrument's pipeline worker
// and is therefore lock-free by design.
package indicator

import (
	"fmt"
	"time"

	"dualstrat/internal/model"
)

// DataError reports a malformed or out-of-order candle. The candle is dropped
// and indicator state is left unchanged.
type DataError struct {
	Instrument string
	TS         time.Time
	Reason     string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("bad candle for %s at %s: %s", e.Instrument, e.TS.Format(time.RFC3339), e.Reason)
}

// Snapshot is the per-candle indicator output consumed by detectors.
type Snapshot struct {
	ATR        float64
	ATRReady   bool
	CVD        float64
	CVDDelta   float64 // signed volume delta of the latest candle
	CVDSlope   float64 // least-squares slope over the short window
	Divergence bool    // price slope and CVD slope disagree in sign
}

// Config holds engine tuning parameters.
type Config struct {
	ATRPeriod  int // Wilder period, default 14
	SlopeSpan  int // short window for CVD slope, default 5
	DivergeLen int // window for divergence check, default 5
}

// withDefaults fills zero fields with defaults.
func (c Config) withDefaults() Config {
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.SlopeSpan <= 0 {
		c.SlopeSpan = 5
	}
	if c.DivergeLen <= 0 {
		c.DivergeLen = 5
	}
	return c
}

// Engine maintains indicator state for a single instrument. Candles must be
// fed in timestamp order; violations surface as *DataError and do not mutate
// any state.
type Engine struct {
	instrument string
	cfg        Config

	atr *ATR
	cvd *CVD

	closes []float64 // bounded close history for divergence
	lastTS time.Time
}

// NewEngine creates an indicator engine for one instrument.
func NewEngine(instrument string, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		instrument: instrument,
		cfg:        cfg,
		atr:        NewATR(cfg.ATRPeriod),
		cvd:        NewCVD(cfg.DivergeLen * 4),
	}
}

// Update validates the candle, advances all indicators, and returns the
// resulting snapshot.
func (e *Engine) Update(c model.Candle) (Snapshot, error) {
	if err := e.check(c); err != nil {
		return Snapshot{}, err
	}

	e.atr.Update(c)
	e.cvd.Update(c)
	e.lastTS = c.TS

	e.closes = append(e.closes, c.Close)
	if len(e.closes) > e.cfg.DivergeLen*4 {
		e.closes = e.closes[len(e.closes)-e.cfg.DivergeLen*4:]
	}

	return Snapshot{
		ATR:        e.atr.Value(),
		ATRReady:   e.atr.Ready(),
		CVD:        e.cvd.Value(),
		CVDDelta:   e.cvd.LastDelta(),
		CVDSlope:   e.cvd.Slope(e.cfg.SlopeSpan),
		Divergence: e.divergence(),
	}, nil
}

// check rejects candles with non-positive prices, inverted ranges, or
// non-monotonic timestamps.
func (e *Engine) check(c model.Candle) error {
	switch {
	case c.TS.IsZero():
		return &DataError{Instrument: e.instrument, TS: c.TS, Reason: "zero timestamp"}
	case !e.lastTS.IsZero() && !c.TS.After(e.lastTS):
		return &DataError{Instrument: e.instrument, TS: c.TS, Reason: "non-monotonic timestamp"}
	case c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0:
		return &DataError{Instrument: e.instrument, TS: c.TS, Reason: "non-positive price"}
	case c.High < c.Low:
		return &DataError{Instrument: e.instrument, TS: c.TS, Reason: "high below low"}
	case c.Volume < 0:
		return &DataError{Instrument: e.instrument, TS: c.TS, Reason: "negative volume"}
	}
	return nil
}

// divergence reports whether the price slope and CVD slope over the
// divergence window disagree in sign. Flat slopes never count.
func (e *Engine) divergence() bool {
	if len(e.closes) < e.cfg.DivergeLen {
		return false
	}
	priceSlope := slope(e.closes[len(e.closes)-e.cfg.DivergeLen:])
	cvdSlope := e.cvd.Slope(e.cfg.DivergeLen)
	if priceSlope == 0 || cvdSlope == 0 {
		return false
	}
	return (priceSlope > 0) != (cvdSlope > 0)
}
