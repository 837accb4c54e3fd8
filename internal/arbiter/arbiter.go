// Package arbiter implements the single-sequencer execution arbiter. It is
// the sole owner of the per-instrument position table and the daily risk
// counters: every validated signal and every fill notification, regardless of
// originating instrument, funnels through one FIFO queue consumed by one
// goroutine, so decisions are linearizable and reproducible from the event
// log.
package arbiter

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"dualstrat/config"
	"dualstrat/internal/metrics"
	"dualstrat/internal/model"
	"dualstrat/internal/risk"
	"dualstrat/internal/session"
	"dualstrat/internal/strategy"
)

// Rejection reasons issued by the arbiter itself (risk reasons live in the
// risk package).
const (
	ReasonInstrumentHalted   = "instrument_halted"
	ReasonInvariantViolation = "invariant_violation"
	ReasonMergeDisabled      = "merge_disabled"
	ReasonMergeCapExceeded   = "merge_cap_exceeded"

	// Priority rejections carry the window that decided them.
	ReasonPriorityContinuation = "priority:continuation"
	ReasonPriorityReversal     = "priority:reversal"
	ReasonPriorityFirstCome    = "priority:first_come"
	// The incoming signal outranked the open position, but force-closing is
	// disabled so the position stands.
	ReasonPriorityOpenPosition = "priority:open_position"
)

// FillKind classifies an external fill notification.
type FillKind int

const (
	FillTP FillKind = iota
	FillStop
)

// FillEvent is a fill reported by the downstream execution collaborator.
// Fills are consumed, never computed: the arbiter trusts the report.
type FillEvent struct {
	Instrument string
	Kind       FillKind
	TPLevel    int     // 1-based ladder level, FillTP only
	Price      float64 // fill price
	ATR        float64 // current ATR, used for trailing after TP2
	TS         time.Time
}

// Stats counts arbiter verdicts since process start.
type Stats struct {
	Accepted int
	Rejected int
	Merged   int
	Closed   int
}

type input struct {
	sig   *model.ValidatedSignal
	fill  *FillEvent
	reset *time.Time
}

// Arbiter serializes validated signals and fills into the authoritative
// position table. All mutation happens on the Run goroutine; the mutex only
// guards concurrent snapshot readers.
type Arbiter struct {
	cfg         config.ArbiterConfig
	account     config.AccountConfig
	instruments map[string]model.Instrument
	clock       *session.Clock
	mode        string

	in        chan input
	decisions chan model.ArbiterDecision
	events    chan any

	mu        sync.RWMutex
	positions map[string]*model.PositionRecord
	origTPs   map[string]int     // ladder length at open, for level accounting
	openRisk  map[string]float64 // dollar risk committed per open position
	acct      risk.AccountState
	halted    map[string]bool
	stats     Stats
}

// New builds an arbiter from the strategy parameter file.
func New(sf *config.StrategyFile, clock *session.Clock, mode string) *Arbiter {
	instruments := make(map[string]model.Instrument, len(sf.Instruments))
	for sym, spec := range sf.Instruments {
		instruments[sym] = model.Instrument{Symbol: sym, TickSize: spec.TickSize, TickValue: spec.TickValue}
	}
	return &Arbiter{
		cfg:         sf.Arbiter,
		account:     sf.Account,
		instruments: instruments,
		clock:       clock,
		mode:        mode,
		in:          make(chan input, 256),
		decisions:   make(chan model.ArbiterDecision, 256),
		events:      make(chan any, 256),
		positions:   make(map[string]*model.PositionRecord),
		origTPs:     make(map[string]int),
		openRisk:    make(map[string]float64),
		acct:        risk.AccountState{Equity: sf.Account.Size},
		halted:      make(map[string]bool),
	}
}

// Submit enqueues a validated signal for arbitration.
func (a *Arbiter) Submit(vs *model.ValidatedSignal) {
	a.in <- input{sig: vs}
}

// OnFill enqueues an external fill notification.
func (a *Arbiter) OnFill(f FillEvent) {
	a.in <- input{fill: &f}
}

// ResetSession enqueues the session-start reset.
func (a *Arbiter) ResetSession(t time.Time) {
	a.in <- input{reset: &t}
}

// Decisions streams arbiter verdicts. Closed when Run exits.
func (a *Arbiter) Decisions() <-chan model.ArbiterDecision {
	return a.decisions
}

// Events streams position lifecycle events for the execution collaborator.
// Closed when Run exits.
func (a *Arbiter) Events() <-chan any {
	return a.events
}

// Run consumes the input queue until ctx is cancelled. It must be the only
// goroutine calling the handle* methods.
func (a *Arbiter) Run(ctx context.Context) {
	slog.Info("arbiter started", "mode", a.mode)
	for {
		select {
		case <-ctx.Done():
			close(a.decisions)
			close(a.events)
			slog.Info("arbiter stopped")
			return
		case ev := <-a.in:
			switch {
			case ev.sig != nil:
				a.handleSignal(ev.sig)
			case ev.fill != nil:
				a.handleFill(*ev.fill)
			case ev.reset != nil:
				a.handleReset(*ev.reset)
			}
		}
	}
}

// Account returns the current account snapshot for risk validation.
func (a *Arbiter) Account() risk.AccountState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.acct
}

// Position returns a copy of the open record for symbol, if any.
func (a *Arbiter) Position(symbol string) (model.PositionRecord, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.positions[symbol]
	if !ok {
		return model.PositionRecord{}, false
	}
	return *rec, true
}

// OpenPositions returns copies of all open records.
func (a *Arbiter) OpenPositions() []model.PositionRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.PositionRecord, 0, len(a.positions))
	for _, rec := range a.positions {
		out = append(out, *rec)
	}
	return out
}

// Halted reports whether an instrument is halted for operator inspection.
func (a *Arbiter) Halted(symbol string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.halted[symbol]
}

// Snapshot returns the verdict counters.
func (a *Arbiter) Snapshot() Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stats
}

func (a *Arbiter) handleSignal(vs *model.ValidatedSignal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sym := vs.Instrument
	if a.halted[sym] {
		a.reject(vs, ReasonInstrumentHalted)
		return
	}

	rec, exists := a.positions[sym]
	if exists && rec.State == model.PositionClosed {
		// A closed record must never remain in the table. Halt rather than
		// self-heal so the operator can inspect the event log.
		a.haltInstrument(sym)
		a.reject(vs, ReasonInvariantViolation)
		return
	}

	switch {
	case !exists:
		a.accept(vs, "")
	case rec.Direction == vs.Direction:
		a.merge(rec, vs)
	default:
		a.resolveConflict(rec, vs)
	}
}

// accept opens a new position record for the signal.
func (a *Arbiter) accept(vs *model.ValidatedSignal, reason string) {
	rec := &model.PositionRecord{
		Instrument:  vs.Instrument,
		StrategyIDs: []string{vs.StrategyID},
		Direction:   vs.Direction,
		Size:        vs.PositionSize,
		Entry:       vs.Entry,
		Stop:        vs.Stop,
		TakeProfits: buildLadder(vs.TakeProfit, vs.PositionSize),
		State:       model.PositionOpen,
		OpenedAt:    vs.CreatedAt,
	}
	a.positions[vs.Instrument] = rec
	a.origTPs[vs.Instrument] = len(rec.TakeProfits)
	a.openRisk[vs.Instrument] = vs.DollarRisk
	a.acct.OpenRiskUSD += vs.DollarRisk

	a.stats.Accepted++
	metrics.ArbiterDecisions.WithLabelValues(model.DecisionAccepted).Inc()
	metrics.OpenPositions.Set(float64(len(a.positions)))

	a.emitDecision(model.ArbiterDecision{
		SignalID: vs.SignalID, StrategyID: vs.StrategyID, Instrument: vs.Instrument,
		Status: model.DecisionAccepted, Reason: reason,
		ResultingPos: rec.Size, DecidedAt: vs.CreatedAt,
	})
	a.emitEvent(model.NewPositionEvent{
		Event: model.EventNewPosition, Symbol: rec.Instrument, Side: rec.Direction,
		EntryPrice: rec.Entry, Size: rec.Size, InitialStop: rec.Stop,
		TPs: rec.TakeProfits, Mode: a.mode, Timestamp: vs.CreatedAt,
	})
	slog.Info("position opened",
		"signal_id", vs.SignalID, "instrument", vs.Instrument,
		"direction", vs.Direction, "size", rec.Size, "entry", rec.Entry, "stop", rec.Stop)
}

// merge folds a same-direction signal into the open position, capped at
// max_merge_multiplier of the existing size.
func (a *Arbiter) merge(rec *model.PositionRecord, vs *model.ValidatedSignal) {
	if !a.cfg.AllowMerging.Bool() {
		a.reject(vs, ReasonMergeDisabled)
		return
	}

	capSize := int(math.Floor(float64(rec.Size) * a.cfg.MaxMergeMultiplier))
	newSize := rec.Size + vs.PositionSize
	if newSize > capSize {
		newSize = capSize
	}
	if newSize <= rec.Size {
		a.reject(vs, ReasonMergeCapExceeded)
		return
	}
	added := newSize - rec.Size

	existingR := recordR(rec)
	rec.Entry = (rec.Entry*float64(rec.Size) + vs.Entry*float64(added)) / float64(newSize)
	rec.Stop = protectiveStop(rec.Direction, rec.Stop, vs.Stop)
	rec.Size = newSize

	// The earlier ladder stands unless the incoming signal's R is strictly
	// better.
	if vs.RMultiple() > existingR {
		rec.TakeProfits = buildLadder(vs.TakeProfit, newSize)
		a.origTPs[rec.Instrument] = len(rec.TakeProfits)
	} else if n := len(rec.TakeProfits); n > 0 {
		rec.TakeProfits[n-1].Qty += added
	}
	if !rec.OwnedBy(vs.StrategyID) {
		rec.StrategyIDs = append(rec.StrategyIDs, vs.StrategyID)
	}

	addedRisk := vs.DollarRisk * float64(added) / float64(vs.PositionSize)
	a.openRisk[rec.Instrument] += addedRisk
	a.acct.OpenRiskUSD += addedRisk

	a.stats.Merged++
	metrics.ArbiterDecisions.WithLabelValues(model.DecisionMerged).Inc()

	a.emitDecision(model.ArbiterDecision{
		SignalID: vs.SignalID, StrategyID: vs.StrategyID, Instrument: vs.Instrument,
		Status: model.DecisionMerged, ResultingPos: rec.Size, DecidedAt: vs.CreatedAt,
	})
	a.emitEvent(model.NewPositionEvent{
		Event: model.EventNewPosition, Symbol: rec.Instrument, Side: rec.Direction,
		EntryPrice: rec.Entry, Size: rec.Size, InitialStop: rec.Stop,
		TPs: rec.TakeProfits, Mode: a.mode, Timestamp: vs.CreatedAt,
	})
	slog.Info("position merged",
		"signal_id", vs.SignalID, "instrument", vs.Instrument,
		"size", rec.Size, "entry", rec.Entry, "stop", rec.Stop)
}

// resolveConflict applies the priority windows to an opposite-direction
// signal against an open position.
func (a *Arbiter) resolveConflict(rec *model.PositionRecord, vs *model.ValidatedSignal) {
	favored := ""
	windowReason := ReasonPriorityFirstCome
	switch {
	case a.clock.InContinuation(vs.CreatedAt):
		favored, windowReason = strategy.StrategyICC, ReasonPriorityContinuation
	case a.clock.InReversal(vs.CreatedAt):
		favored, windowReason = strategy.StrategyGapInv, ReasonPriorityReversal
	}

	incomingWins := favored != "" && vs.StrategyID == favored && !rec.OwnedBy(favored)
	if !incomingWins {
		a.reject(vs, windowReason)
		return
	}
	if !a.cfg.CloseOnPriorityConflict {
		// Default policy: the open position stands untouched.
		a.reject(vs, ReasonPriorityOpenPosition)
		return
	}

	a.closeRecord(rec, "PRIORITY_CONFLICT", vs.CreatedAt)
	a.accept(vs, windowReason)
}

func (a *Arbiter) handleFill(f FillEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.positions[f.Instrument]
	if !ok {
		slog.Warn("fill for unknown position", "instrument", f.Instrument)
		return
	}
	switch f.Kind {
	case FillStop:
		a.recordLoss(rec, f.Price)
		a.closeRecord(rec, "STOP_HIT", f.TS)
	case FillTP:
		a.applyTPFill(rec, f)
	}
}

// applyTPFill consumes the next ladder rung and moves the stop per the level
// rule: TP1 to breakeven plus buffer, TP2 to an ATR trail.
func (a *Arbiter) applyTPFill(rec *model.PositionRecord, f FillEvent) {
	if len(rec.TakeProfits) == 0 {
		slog.Warn("tp fill with empty ladder", "instrument", f.Instrument)
		return
	}
	rung := rec.TakeProfits[0]
	rec.TakeProfits = rec.TakeProfits[1:]
	rec.Size -= rung.Qty

	level := f.TPLevel
	if level <= 0 {
		level = a.origTPs[rec.Instrument] - len(rec.TakeProfits)
	}

	if rec.Size <= 0 || len(rec.TakeProfits) == 0 {
		a.emitEvent(model.TPFilledEvent{
			Event: model.EventTPFilled, Symbol: rec.Instrument, TPLevel: level,
			RemainingSize: 0, Timestamp: f.TS,
		})
		a.closeRecord(rec, "FINAL_TP", f.TS)
		return
	}

	inst := a.instruments[rec.Instrument]
	var stop float64
	var reason string
	if level <= 1 {
		buffer := float64(a.cfg.BreakevenBufferTicks) * inst.TickSize
		stop = rec.Entry + rec.Direction.Sign()*buffer
		reason = "TP1_BE_MOVE"
		rec.State = model.PositionPartial
	} else {
		dist := a.cfg.TrailATRMultiplier * f.ATR
		if min := float64(a.cfg.MinTrailTicks) * inst.TickSize; dist < min {
			dist = min
		}
		stop = f.Price - rec.Direction.Sign()*dist
		reason = "TP2_TRAIL"
		rec.State = model.PositionPartial2
	}
	rec.Stop = protectiveStop(rec.Direction, rec.Stop, stop)

	a.emitEvent(model.TPFilledEvent{
		Event: model.EventTPFilled, Symbol: rec.Instrument, TPLevel: level,
		RemainingSize: rec.Size,
		StopUpdate: model.StopDetails{
			Price: rec.Stop, Qty: rec.Size, Method: "MODIFY_IN_PLACE", Reason: reason,
		},
		Timestamp: f.TS,
	})
	slog.Info("take profit filled",
		"instrument", rec.Instrument, "level", level,
		"remaining", rec.Size, "stop", rec.Stop, "reason", reason)
}

// recordLoss adds a realized stop-out loss to the monotonic daily counter.
// Profitable exits never decrease it.
func (a *Arbiter) recordLoss(rec *model.PositionRecord, fillPrice float64) {
	lossPts := (rec.Entry - fillPrice) * rec.Direction.Sign()
	if lossPts <= 0 {
		return
	}
	inst := a.instruments[rec.Instrument]
	lossUSD := inst.Ticks(lossPts) * inst.TickValue * float64(rec.Size)
	a.acct.RealizedDailyLoss += lossUSD
	metrics.DailyLossUSD.Set(a.acct.RealizedDailyLoss)
	slog.Info("realized loss",
		"instrument", rec.Instrument, "loss_usd", lossUSD,
		"daily_total", a.acct.RealizedDailyLoss)
}

// closeRecord finalizes and removes a position, freeing the instrument slot.
func (a *Arbiter) closeRecord(rec *model.PositionRecord, reason string, ts time.Time) {
	rec.State = model.PositionClosed
	delete(a.positions, rec.Instrument)
	delete(a.origTPs, rec.Instrument)
	a.acct.OpenRiskUSD -= a.openRisk[rec.Instrument]
	delete(a.openRisk, rec.Instrument)

	a.stats.Closed++
	metrics.OpenPositions.Set(float64(len(a.positions)))

	a.emitEvent(model.CloseTradeEvent{
		Event: model.EventCloseTrade, Symbol: rec.Instrument,
		Action: "FLATTEN", Reason: reason, Timestamp: ts,
	})
	slog.Info("position closed", "instrument", rec.Instrument, "reason", reason)
}

// handleReset clears the session counters at session start. Open positions
// are left to close naturally via fills.
func (a *Arbiter) handleReset(t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.acct.RealizedDailyLoss = 0
	a.halted = make(map[string]bool)
	metrics.DailyLossUSD.Set(0)
	slog.Info("session reset", "at", t.UTC().Format(time.RFC3339))
}

func (a *Arbiter) reject(vs *model.ValidatedSignal, reason string) {
	a.stats.Rejected++
	metrics.ArbiterDecisions.WithLabelValues(model.DecisionRejected).Inc()
	a.emitDecision(model.ArbiterDecision{
		SignalID: vs.SignalID, StrategyID: vs.StrategyID, Instrument: vs.Instrument,
		Status: model.DecisionRejected, Reason: reason, DecidedAt: vs.CreatedAt,
	})
	slog.Info("signal rejected",
		"signal_id", vs.SignalID, "instrument", vs.Instrument, "reason", reason)
}

func (a *Arbiter) haltInstrument(sym string) {
	a.halted[sym] = true
	metrics.InvariantViolations.WithLabelValues(sym).Inc()
	slog.Error("position table invariant violated, instrument halted", "instrument", sym)
}

func (a *Arbiter) emitDecision(d model.ArbiterDecision) {
	select {
	case a.decisions <- d:
	default:
		slog.Warn("decision channel full, dropping", "signal_id", d.SignalID)
	}
}

func (a *Arbiter) emitEvent(ev any) {
	select {
	case a.events <- ev:
	default:
		slog.Warn("event channel full, dropping")
	}
}

// buildLadder splits size across the take-profit levels as evenly as
// possible, giving the remainder to the last rung so the runner carries the
// extra contracts. Zero-quantity rungs are dropped.
func buildLadder(levels []float64, size int) []model.TPLevel {
	n := len(levels)
	if n == 0 || size <= 0 {
		return nil
	}
	base := size / n
	rem := size % n
	out := make([]model.TPLevel, 0, n)
	for i, price := range levels {
		qty := base
		if i == n-1 {
			qty += rem
		}
		if qty > 0 {
			out = append(out, model.TPLevel{Price: price, Qty: qty})
		}
	}
	return out
}

// protectiveStop returns the tighter of two stops: the higher for a long,
// the lower for a short. The stop never loosens.
func protectiveStop(dir model.Direction, current, candidate float64) float64 {
	if dir == model.DirLong {
		if candidate > current {
			return candidate
		}
		return current
	}
	if candidate < current {
		return candidate
	}
	return current
}

// recordR computes the open position's reward/risk at its first remaining
// ladder rung.
func recordR(rec *model.PositionRecord) float64 {
	if len(rec.TakeProfits) == 0 {
		return 0
	}
	riskDist := (rec.Entry - rec.Stop) * rec.Direction.Sign()
	if riskDist <= 0 {
		return 0
	}
	reward := (rec.TakeProfits[0].Price - rec.Entry) * rec.Direction.Sign()
	return reward / riskDist
}
