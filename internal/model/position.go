package model

import "time"

// PositionState tracks how much of a position remains working.
type PositionState string

const (
	PositionOpen     PositionState = "OPEN"     // no take-profit filled yet
	PositionPartial  PositionState = "PARTIAL"  // TP1 filled, stop at breakeven
	PositionPartial2 PositionState = "PARTIAL2" // TP2 filled, stop trailing
	PositionClosed   PositionState = "CLOSED"   // flat; record is removed
)

// TPLevel is one rung of a position's take-profit ladder.
type TPLevel struct {
	Price float64 `json:"price"`
	Qty   int     `json:"qty"`
}

// PositionRecord is the authoritative per-instrument position entry owned by
// the execution arbiter. At most one non-CLOSED record exists per instrument;
// only arbiter-mediated fill events mutate it.
type PositionRecord struct {
	Instrument  string        `json:"instrument"`
	StrategyIDs []string      `json:"strategy_ids"` // plural after a merge
	Direction   Direction     `json:"direction"`
	Size        int           `json:"size"`  // remaining contracts
	Entry       float64       `json:"entry"` // weighted average after merges
	Stop        float64       `json:"stop"`
	TakeProfits []TPLevel     `json:"take_profits"` // remaining ladder rungs
	State       PositionState `json:"state"`
	OpenedAt    time.Time     `json:"opened_at"`
}

// OwnedBy reports whether the given strategy contributed to this position.
func (p *PositionRecord) OwnedBy(strategyID string) bool {
	for _, id := range p.StrategyIDs {
		if id == strategyID {
			return true
		}
	}
	return false
}

// RemainingTPQty returns the total quantity still allocated to the ladder.
func (p *PositionRecord) RemainingTPQty() int {
	total := 0
	for _, tp := range p.TakeProfits {
		total += tp.Qty
	}
	return total
}
