package model

import (
	"encoding/json"
	"time"
)

// Decision statuses recorded by the execution arbiter.
const (
	DecisionAccepted = "accepted"
	DecisionRejected = "rejected"
	DecisionMerged   = "merged"
)

// ArbiterDecision is the arbiter's verdict on a validated signal (§6 schema).
type ArbiterDecision struct {
	SignalID     string    `json:"signal_id"`
	StrategyID   string    `json:"strategy_id"`
	Instrument   string    `json:"instrument"`
	Status       string    `json:"status"` // accepted | rejected | merged
	Reason       string    `json:"reason,omitempty"`
	ResultingPos int       `json:"resulting_position_size"`
	DecidedAt    time.Time `json:"decided_at"`
}

// JSON returns the JSON-encoded decision.
func (d *ArbiterDecision) JSON() []byte {
	b, _ := json.Marshal(d)
	return b
}

// Lifecycle event types consumed by the downstream execution collaborator.
const (
	EventNewPosition = "NEW_POSITION"
	EventTPFilled    = "TP_FILLED"
	EventStopUpdate  = "STOP_UPDATE"
	EventCloseTrade  = "CLOSE_TRADE"
)

// NewPositionEvent announces an accepted (or merged) position to the
// execution layer.
type NewPositionEvent struct {
	Event       string    `json:"event"` // NEW_POSITION
	Symbol      string    `json:"symbol"`
	Side        Direction `json:"side"`
	EntryPrice  float64   `json:"entry_price"`
	Size        int       `json:"size"`
	InitialStop float64   `json:"initial_stop"`
	TPs         []TPLevel `json:"tps"`
	Mode        string    `json:"mode"` // EVAL or LIVE, passed through from config
	Timestamp   time.Time `json:"timestamp"`
}

// StopDetails describes a stop order change inside TP_FILLED/STOP_UPDATE.
type StopDetails struct {
	Price  float64 `json:"price"`
	Qty    int     `json:"qty"`
	Method string  `json:"method"` // MODIFY_IN_PLACE
	Reason string  `json:"reason"` // e.g. TP1_BE_MOVE, TP2_TRAIL
}

// TPFilledEvent reports a filled take-profit rung and the stop that follows.
type TPFilledEvent struct {
	Event         string      `json:"event"` // TP_FILLED
	Symbol        string      `json:"symbol"`
	TPLevel       int         `json:"tp_level"` // 1-based
	RemainingSize int         `json:"remaining_size"`
	StopUpdate    StopDetails `json:"stop_update"`
	Timestamp     time.Time   `json:"timestamp"`
}

// StopUpdateEvent carries a standalone stop modification.
type StopUpdateEvent struct {
	Event     string      `json:"event"` // STOP_UPDATE
	Symbol    string      `json:"symbol"`
	Details   StopDetails `json:"details"`
	Timestamp time.Time   `json:"timestamp"`
}

// CloseTradeEvent asks the execution layer to flatten an instrument.
type CloseTradeEvent struct {
	Event     string    `json:"event"` // CLOSE_TRADE
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"` // FLATTEN
	Reason    string    `json:"reason"` // e.g. STOP_HIT, FINAL_TP
	Timestamp time.Time `json:"timestamp"`
}

// MarshalEvent JSON-encodes any lifecycle event for transport.
func MarshalEvent(ev any) []byte {
	b, _ := json.Marshal(ev)
	return b
}
