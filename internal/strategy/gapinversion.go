package strategy

import (
	"fmt"

	"dualstrat/config"
	"dualstrat/internal/indicator"
	"dualstrat/internal/model"
	"dualstrat/internal/window"
)

// gapDir is the direction a gap opened in.
type gapDir int

const (
	gapUp gapDir = iota
	gapDown
)

// gap is one tracked price gap between a close and the next open.
type gap struct {
	dir    gapDir
	high   float64 // upper edge
	low    float64 // lower edge
	bornAt int     // candle count when the gap formed
	filled bool    // price traded back into the gap at least once
}

// inverted reports whether the candle closes through the far side of the gap.
// A gap up inverts on a close below its low, a gap down on a close above its
// high.
func (g *gap) inverted(c model.Candle) bool {
	if g.dir == gapUp {
		return c.Close < g.low
	}
	return c.Close > g.high
}

// fills reports whether the candle trades back into the gap range.
func (g *gap) fills(c model.Candle) bool {
	if g.dir == gapUp {
		return c.Low <= g.high
	}
	return c.High >= g.low
}

// GapInversion detects price gaps and trades their inversion: a gap up that
// later closes below its lower edge yields a short, a gap down that closes
// above its upper edge yields a long. An optional probe filter requires a
// recent failed push in the opposite direction before the inversion.
type GapInversion struct {
	cfg        config.GapInversionConfig
	inst       model.Instrument
	maxLossUSD float64

	win       *window.Window
	gaps      []gap
	phase     Phase
	prevClose float64
	hasPrev   bool
	count     int
}

// NewGapInversion creates a gap-inversion detector for one instrument.
func NewGapInversion(inst model.Instrument, cfg config.GapInversionConfig, maxLossUSD float64) *GapInversion {
	cap := cfg.SwingLookback * 2
	if cap < 32 {
		cap = 32
	}
	return &GapInversion{
		cfg:        cfg,
		inst:       inst,
		maxLossUSD: maxLossUSD,
		win:        window.New(cap),
		phase:      PhaseIdle,
	}
}

func (d *GapInversion) Name() string { return StrategyGapInv }

// Phase reports GAP_DETECTED while any gap is being tracked and GAP_INVERTED
// on the candle that emitted; the next candle recomputes it.
func (d *GapInversion) Phase() Phase {
	return d.phase
}

// Reset drops all tracked gaps and candle history.
func (d *GapInversion) Reset() {
	d.gaps = d.gaps[:0]
	d.phase = PhaseIdle
	d.hasPrev = false
	d.count = 0
	d.win = window.New(d.win.Cap())
}

// OnCandle feeds one completed candle. Gaps between candles are meaningful
// input here, never data errors.
func (d *GapInversion) OnCandle(c model.Candle, _ indicator.Snapshot) *model.Signal {
	if !d.cfg.Enabled {
		return nil
	}
	d.count++

	sig := d.updateGaps(c)

	// A new gap may open on the same candle that inverts an older one.
	if d.hasPrev {
		d.detectGap(c)
	}
	d.prevClose = c.Close
	d.hasPrev = true
	d.win.Append(c)

	switch {
	case sig != nil:
		d.phase = PhaseGapInverted
	case len(d.gaps) > 0:
		d.phase = PhaseGapDetected
	default:
		d.phase = PhaseIdle
	}
	return sig
}

// updateGaps ages, fills, and checks inversion on all tracked gaps, emitting
// at most one signal for the first inversion found.
func (d *GapInversion) updateGaps(c model.Candle) *model.Signal {
	var sig *model.Signal
	kept := d.gaps[:0]
	for _, g := range d.gaps {
		if d.count-g.bornAt > d.cfg.MaxGapAge {
			continue // expired, drop silently
		}
		if !g.filled && g.fills(c) {
			g.filled = true
		}
		if sig == nil && g.inverted(c) {
			sig = d.emit(g, c)
			continue // inverted gaps are consumed either way
		}
		kept = append(kept, g)
	}
	d.gaps = kept
	return sig
}

// detectGap opens a new gap when the candle opens at least min_gap_ticks away
// from the previous close.
func (d *GapInversion) detectGap(c model.Candle) {
	minGap := float64(d.cfg.MinGapTicks) * d.inst.TickSize
	diff := c.Open - d.prevClose
	switch {
	case diff >= minGap:
		d.gaps = append(d.gaps, gap{dir: gapUp, high: c.Open, low: d.prevClose, bornAt: d.count})
	case -diff >= minGap:
		d.gaps = append(d.gaps, gap{dir: gapDown, high: d.prevClose, low: c.Open, bornAt: d.count})
	}
}

// emit builds the inversion signal: entry at the inversion close, stop beyond
// the recent opposite swing with a tick buffer, targets at 1.5x and 2.5x the
// stop distance.
func (d *GapInversion) emit(g gap, c model.Candle) *model.Signal {
	dir := model.DirShort
	if g.dir == gapDown {
		dir = model.DirLong
	}

	if d.cfg.RequireProbe && !d.hasOppositeProbe(dir) {
		return nil
	}

	entry := c.Close
	stop, ok := d.swingStop(dir, c)
	if !ok {
		return nil
	}

	dist := entry - stop
	if dist < 0 {
		dist = -dist
	}
	tp1 := entry + dir.Sign()*1.5*dist
	tp2 := entry + dir.Sign()*2.5*dist

	sig := &model.Signal{
		StrategyID: StrategyGapInv,
		SignalID:   model.NewSignalID(StrategyGapInv, d.inst.Symbol, c.TS),
		Instrument: d.inst.Symbol,
		Direction:  dir,
		Entry:      entry,
		Stop:       stop,
		TakeProfit: []float64{tp1, tp2},
		MaxLossUSD: d.maxLossUSD,
		Notes:      fmt.Sprintf("gap inversion %.2f-%.2f, filled=%v", g.low, g.high, g.filled),
		CreatedAt:  c.TS,
	}
	if sig.Validate() != nil {
		return nil
	}
	return sig
}

// swingStop places the stop beyond the recent swing extreme against the
// trade. With thin history it falls back to a fixed-width stop off the
// inversion candle.
func (d *GapInversion) swingStop(dir model.Direction, c model.Candle) (float64, bool) {
	buffer := float64(d.cfg.StopBufferTicks) * d.inst.TickSize
	if d.win.Len() < 10 {
		const fallbackTicks = 20
		wide := fallbackTicks * d.inst.TickSize
		if dir == model.DirLong {
			return c.Low - wide, true
		}
		return c.High + wide, true
	}
	if dir == model.DirLong {
		ll, ok := d.win.LowestLow(d.cfg.SwingLookback, 0)
		if !ok {
			return 0, false
		}
		return ll - buffer, true
	}
	hh, ok := d.win.HighestHigh(d.cfg.SwingLookback, 0)
	if !ok {
		return 0, false
	}
	return hh + buffer, true
}

// hasOppositeProbe checks for a recent failed push beyond a swing level
// against the signal direction: a long wants a prior probe below a swing low,
// a short wants a probe above a swing high. The swing level comes from the
// older half of the lookback, the probe from the newer half.
func (d *GapInversion) hasOppositeProbe(dir model.Direction) bool {
	n := d.win.Len()
	if n < 6 {
		return false
	}

	var swingN, swingSkip, probeN int
	if n >= 20 {
		swingN, swingSkip, probeN = 10, 10, 10
	} else {
		half := n / 2
		swingN, swingSkip, probeN = half, n-half, n-half
	}

	if dir == model.DirLong {
		swingLow, ok := d.win.LowestLow(swingN, swingSkip)
		if !ok {
			return false
		}
		probeLow, ok := d.win.LowestLow(probeN, 0)
		return ok && probeLow < swingLow
	}
	swingHigh, ok := d.win.HighestHigh(swingN, swingSkip)
	if !ok {
		return false
	}
	probeHigh, ok := d.win.HighestHigh(probeN, 0)
	return ok && probeHigh > swingHigh
}
