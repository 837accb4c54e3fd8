// Package strategy implements the pattern detectors. Each detector is a
// finite state machine over one instrument's candle sequence: it consumes
// completed candles plus the indicator snapshot and emits at most one raw
// Signal per candle. Detector instances are exclusively owned by one
// instrument's pipeline worker and hold no locks.
package strategy

import (
	"dualstrat/internal/indicator"
	"dualstrat/internal/model"
)

// Strategy identifiers carried on emitted signals.
const (
	StrategyICC    = "ICC"    // trend continuation
	StrategyGapInv = "GAPINV" // gap inversion
)

// Phase is a detector state machine phase.
type Phase string

const (
	PhaseIdle         Phase = "IDLE"
	PhaseIndication   Phase = "INDICATION_DETECTED"
	PhaseCorrection   Phase = "CORRECTION_DETECTED"
	PhaseContinuation Phase = "CONTINUATION_CONFIRMED"
	PhaseGapDetected  Phase = "GAP_DETECTED"
	PhaseGapInverted  Phase = "GAP_INVERTED"
	PhaseInvalidated  Phase = "INVALIDATED"
)

// Detector is the capability shared by both pattern variants, keeping the
// risk validator and arbiter flavor-agnostic.
type Detector interface {
	// Name returns the strategy identifier stamped on emitted signals.
	Name() string

	// Phase returns the current state machine phase, for observability.
	Phase() Phase

	// OnCandle feeds one completed candle and its indicator snapshot.
	// Returns a raw Signal when the pattern completes, nil otherwise.
	// Emitting clears the working state; the pattern cannot fire twice.
	OnCandle(c model.Candle, ind indicator.Snapshot) *model.Signal

	// Reset clears all working state back to IDLE. Used on session reset.
	Reset()
}
