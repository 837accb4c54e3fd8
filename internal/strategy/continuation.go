package strategy

import (
	"fmt"

	"dualstrat/config"
	"dualstrat/internal/indicator"
	"dualstrat/internal/model"
	"dualstrat/internal/window"
)

// Continuation detects the three-phase trend-continuation pattern:
// an impulsive displacement leg (indication), a retracement into the
// value zone with fading order flow (correction), and a resumption
// close beyond the correction range (continuation).
type Continuation struct {
	cfg        config.ContinuationConfig
	inst       model.Instrument
	maxLossUSD float64

	win   *window.Window
	phase Phase

	// Indication leg, valid from INDICATION_DETECTED onward.
	dir     model.Direction
	legHigh float64
	legLow  float64

	// Correction range, valid in CORRECTION_DETECTED.
	corrHigh float64
	corrLow  float64

	age int // candles since the current phase began
}

// NewContinuation creates a trend-continuation detector for one instrument.
func NewContinuation(inst model.Instrument, cfg config.ContinuationConfig, maxLossUSD float64) *Continuation {
	cap := cfg.SwingLookback * 2
	if cap < 16 {
		cap = 16
	}
	return &Continuation{
		cfg:        cfg,
		inst:       inst,
		maxLossUSD: maxLossUSD,
		win:        window.New(cap),
		phase:      PhaseIdle,
	}
}

func (d *Continuation) Name() string { return StrategyICC }

func (d *Continuation) Phase() Phase { return d.phase }

// Reset clears the state machine back to IDLE. Candle history is kept so the
// swing lookback does not need to refill.
func (d *Continuation) Reset() {
	d.phase = PhaseIdle
	d.age = 0
}

// OnCandle advances the state machine by one candle. Swing checks run against
// history excluding the current candle, which is appended afterwards.
func (d *Continuation) OnCandle(c model.Candle, ind indicator.Snapshot) *model.Signal {
	defer d.win.Append(c)
	if !d.cfg.Enabled {
		return nil
	}

	switch d.phase {
	case PhaseIdle:
		d.tryIndication(c, ind)
	case PhaseIndication:
		d.trackRetrace(c, ind)
	case PhaseCorrection:
		return d.tryConfirmation(c, ind)
	}
	return nil
}

// tryIndication looks for a displacement candle that also breaks the prior
// swing extreme in its direction.
func (d *Continuation) tryIndication(c model.Candle, ind indicator.Snapshot) {
	if !ind.ATRReady || d.win.Len() < d.cfg.SwingLookback {
		return
	}
	if c.Body() < d.cfg.DisplacementATR*ind.ATR {
		return
	}

	switch {
	case c.Bullish():
		hh, ok := d.win.HighestHigh(d.cfg.SwingLookback, 0)
		if !ok || c.Close <= hh {
			return
		}
		d.dir = model.DirLong
	case c.Bearish():
		ll, ok := d.win.LowestLow(d.cfg.SwingLookback, 0)
		if !ok || c.Close >= ll {
			return
		}
		d.dir = model.DirShort
	default:
		return
	}

	d.legHigh = c.High
	d.legLow = c.Low
	d.age = 0
	d.phase = PhaseIndication
}

// trackRetrace waits for price to pull back into the value zone while CVD
// pressure fades. The leg extends while price keeps pushing with the trend.
func (d *Continuation) trackRetrace(c model.Candle, ind indicator.Snapshot) {
	d.age++
	if d.age > d.cfg.MaxCorrectionAge {
		d.invalidate()
		return
	}

	// Impulse still running: extend the leg and keep waiting.
	if d.dir == model.DirLong && c.High > d.legHigh {
		d.legHigh = c.High
	}
	if d.dir == model.DirShort && c.Low < d.legLow {
		d.legLow = c.Low
	}

	leg := d.legHigh - d.legLow
	if leg <= 0 {
		d.invalidate()
		return
	}

	retrace := d.retraceOf(c.Close, leg)
	if retrace > d.cfg.ZoneHigh {
		// Pulled back past the zone before order flow faded.
		d.invalidate()
		return
	}
	if retrace >= d.cfg.ZoneLow && d.cvdFading(ind) {
		d.corrHigh = c.High
		d.corrLow = c.Low
		d.age = 0
		d.phase = PhaseCorrection
	}
}

// tryConfirmation waits for a close beyond the correction range in the trend
// direction with agreeing volume delta, and emits the signal.
func (d *Continuation) tryConfirmation(c model.Candle, ind indicator.Snapshot) *model.Signal {
	d.age++
	if d.age > d.cfg.MaxCorrectionAge {
		d.invalidate()
		return nil
	}

	confirmed := false
	if d.dir == model.DirLong {
		confirmed = c.Close > d.corrHigh && ind.CVDDelta > 0
	} else {
		confirmed = c.Close < d.corrLow && ind.CVDDelta < 0
	}
	if confirmed {
		sig := d.emit(c, ind)
		d.phase = PhaseContinuation
		d.Reset()
		return sig
	}

	if c.High > d.corrHigh {
		d.corrHigh = c.High
	}
	if c.Low < d.corrLow {
		d.corrLow = c.Low
	}

	// The correction must stay inside the value zone.
	leg := d.legHigh - d.legLow
	if d.retraceOf(c.Close, leg) > d.cfg.ZoneHigh {
		d.invalidate()
	}
	return nil
}

func (d *Continuation) emit(c model.Candle, ind indicator.Snapshot) *model.Signal {
	entry := c.Close
	buffer := ind.ATR * d.cfg.StopBufferATR

	var stop float64
	if d.dir == model.DirLong {
		stop = d.corrLow - buffer
	} else {
		stop = d.corrHigh + buffer
	}

	risk := entry - stop
	if risk < 0 {
		risk = -risk
	}
	tp := entry + d.dir.Sign()*d.cfg.RTarget*risk

	sig := &model.Signal{
		StrategyID: StrategyICC,
		SignalID:   model.NewSignalID(StrategyICC, d.inst.Symbol, c.TS),
		Instrument: d.inst.Symbol,
		Direction:  d.dir,
		Entry:      entry,
		Stop:       stop,
		TakeProfit: []float64{tp},
		MaxLossUSD: d.maxLossUSD,
		Notes:      fmt.Sprintf("continuation confirmed, leg %.2f-%.2f", d.legLow, d.legHigh),
		CreatedAt:  c.TS,
	}
	if sig.Validate() != nil {
		return nil
	}
	return sig
}

// retraceOf returns the pullback fraction of price against the indication leg.
func (d *Continuation) retraceOf(price, leg float64) float64 {
	if leg <= 0 {
		return 0
	}
	if d.dir == model.DirLong {
		return (d.legHigh - price) / leg
	}
	return (price - d.legLow) / leg
}

// cvdFading reports whether the short-window CVD slope has flattened or
// turned against the indication direction.
func (d *Continuation) cvdFading(ind indicator.Snapshot) bool {
	s := ind.CVDSlope
	if s < 0 {
		s = -s
	}
	if s < d.cfg.CVDFlatSlope {
		return true
	}
	return (ind.CVDSlope > 0) != (d.dir == model.DirLong)
}

func (d *Continuation) invalidate() {
	d.phase = PhaseInvalidated
	d.Reset()
}
