package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Direction is a trade direction.
type Direction string

const (
	DirLong  Direction = "LONG"
	DirShort Direction = "SHORT"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == DirLong {
		return DirShort
	}
	return DirLong
}

// Sign returns +1 for long, -1 for short.
func (d Direction) Sign() float64 {
	if d == DirLong {
		return 1
	}
	return -1
}

// Signal is a raw trade instruction emitted by a pattern detector.
// It is immutable once created; the risk validator wraps it in a
// ValidatedSignal rather than mutating it.
type Signal struct {
	StrategyID string    `json:"strategy_id"` // e.g. ICC, GAPINV
	SignalID   string    `json:"signal_id"`
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Entry      float64   `json:"entry_price"`
	Stop       float64   `json:"stop_price"`
	TakeProfit []float64 `json:"take_profit"` // ordered, nearest first
	MaxLossUSD float64   `json:"max_loss_usd"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewSignalID builds a unique signal ID from strategy, instrument, and
// creation time. The strategy is part of the key: both detectors can fire on
// the same candle of the same instrument.
func NewSignalID(strategyID, instrument string, ts time.Time) string {
	return fmt.Sprintf("%s-%s-%s-%03d", ts.UTC().Format("2006-01-02T15:04:05Z"), strategyID, instrument, ts.Nanosecond()/1_000_000)
}

// Validate checks structural soundness: stop on the correct side of entry and
// every take-profit level on the profit side.
func (s *Signal) Validate() error {
	if s.Entry <= 0 || s.Stop <= 0 {
		return errors.New("entry and stop must be positive")
	}
	if s.Stop == s.Entry {
		return errors.New("stop must differ from entry")
	}
	switch s.Direction {
	case DirLong:
		if s.Stop >= s.Entry {
			return errors.New("long stop must be below entry")
		}
	case DirShort:
		if s.Stop <= s.Entry {
			return errors.New("short stop must be above entry")
		}
	default:
		return fmt.Errorf("invalid direction %q", s.Direction)
	}
	if len(s.TakeProfit) == 0 {
		return errors.New("at least one take profit level required")
	}
	for _, tp := range s.TakeProfit {
		if s.Direction == DirLong && tp <= s.Entry {
			return errors.New("long take profits must be above entry")
		}
		if s.Direction == DirShort && tp >= s.Entry {
			return errors.New("short take profits must be below entry")
		}
	}
	return nil
}

// RiskDistance returns |entry - stop| in points.
func (s *Signal) RiskDistance() float64 {
	d := s.Entry - s.Stop
	if d < 0 {
		d = -d
	}
	return d
}

// RMultiple returns reward/risk for the first take-profit level.
// Long: (tp1 - entry) / (entry - stop). Short: (entry - tp1) / (stop - entry).
func (s *Signal) RMultiple() float64 {
	risk := s.RiskDistance()
	if risk == 0 || len(s.TakeProfit) == 0 {
		return 0
	}
	if s.Direction == DirLong {
		return (s.TakeProfit[0] - s.Entry) / risk
	}
	return (s.Entry - s.TakeProfit[0]) / risk
}

// JSON returns the JSON-encoded signal (§6 external schema).
func (s *Signal) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// ValidatedSignal is a Signal that passed risk validation, carrying the
// computed position size and dollar risk.
type ValidatedSignal struct {
	Signal
	PositionSize int     `json:"position_size"` // contracts
	DollarRisk   float64 `json:"dollar_risk"`
	RiskPct      float64 `json:"risk_pct"` // dollar_risk / equity * 100
}
