// Package risk implements position sizing and signal validation. The
// validator is a pure function of the signal, the account state, and the
// instrument specification: it never mutates shared state and a rejected
// signal is discarded, never requeued.
package risk

import (
	"fmt"
	"math"

	"dualstrat/config"
	"dualstrat/internal/model"
)

// Rejection reason codes, in check order.
const (
	ReasonUnsupportedInstrument = "unsupported_instrument"
	ReasonSizeTooSmall          = "size_too_small"
	ReasonRMultipleTooLow       = "r_multiple_too_low"
	ReasonDailyLimitExceeded    = "daily_limit_exceeded"
	ReasonRestrictedEvent       = "restricted_event_window"
)

// Rejection describes why a signal was refused.
type Rejection struct {
	SignalID string
	Reason   string
	Detail   string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("signal %s rejected: %s (%s)", r.SignalID, r.Reason, r.Detail)
}

// AccountState is the account snapshot a signal is validated against.
// RealizedDailyLoss is monotonically non-decreasing within a session and
// resets only at session start.
type AccountState struct {
	Equity            float64
	RealizedDailyLoss float64
	OpenRiskUSD       float64
}

// Validator sizes and validates raw signals against the configured
// instrument set and risk limits.
type Validator struct {
	instruments    map[string]model.Instrument
	maxRiskUSD     float64
	dailyLossLimit float64
	minR           map[string]float64
	defaultMinR    float64
	calendar       *Calendar
}

// NewValidator builds a validator from the strategy parameter file.
func NewValidator(sf *config.StrategyFile, cal *Calendar) *Validator {
	instruments := make(map[string]model.Instrument, len(sf.Instruments))
	for sym, spec := range sf.Instruments {
		instruments[sym] = model.Instrument{
			Symbol:    sym,
			TickSize:  spec.TickSize,
			TickValue: spec.TickValue,
		}
	}
	return &Validator{
		instruments:    instruments,
		maxRiskUSD:     sf.Account.MaxRiskUSD,
		dailyLossLimit: sf.Account.DailyLossLimit,
		minR: map[string]float64{
			"ICC":    sf.Continuation.MinRMultiple,
			"GAPINV": sf.GapInversion.MinRMultiple,
		},
		defaultMinR: 1.5,
		calendar:    cal,
	}
}

// Instrument resolves the spec for a configured symbol.
func (v *Validator) Instrument(symbol string) (model.Instrument, bool) {
	inst, ok := v.instruments[symbol]
	return inst, ok
}

// Validate runs the ordered checks and returns either the sized signal or a
// rejection. Checks run in a fixed order so rejection reasons are
// deterministic.
func (v *Validator) Validate(sig *model.Signal, acct AccountState) (*model.ValidatedSignal, *Rejection) {
	inst, ok := v.instruments[sig.Instrument]
	if !ok {
		return nil, &Rejection{
			SignalID: sig.SignalID,
			Reason:   ReasonUnsupportedInstrument,
			Detail:   fmt.Sprintf("instrument %s not in allowed set", sig.Instrument),
		}
	}

	stopTicks := inst.Ticks(sig.RiskDistance())
	budget := sig.MaxLossUSD
	if budget <= 0 || budget > v.maxRiskUSD {
		budget = v.maxRiskUSD
	}
	size := 0
	if stopTicks > 0 {
		size = int(math.Floor(budget / (stopTicks * inst.TickValue)))
	}
	if size < 1 {
		return nil, &Rejection{
			SignalID: sig.SignalID,
			Reason:   ReasonSizeTooSmall,
			Detail:   fmt.Sprintf("stop %.1f ticks exceeds risk budget $%.0f", stopTicks, budget),
		}
	}

	minR := v.defaultMinR
	if r, ok := v.minR[sig.StrategyID]; ok && r > 0 {
		minR = r
	}
	if rm := sig.RMultiple(); rm < minR {
		return nil, &Rejection{
			SignalID: sig.SignalID,
			Reason:   ReasonRMultipleTooLow,
			Detail:   fmt.Sprintf("r=%.2f below minimum %.2f", rm, minR),
		}
	}

	dollarRisk := float64(size) * stopTicks * inst.TickValue
	if acct.RealizedDailyLoss+dollarRisk > v.dailyLossLimit {
		return nil, &Rejection{
			SignalID: sig.SignalID,
			Reason:   ReasonDailyLimitExceeded,
			Detail: fmt.Sprintf("realized $%.0f + projected $%.0f exceeds limit $%.0f",
				acct.RealizedDailyLoss, dollarRisk, v.dailyLossLimit),
		}
	}

	if v.calendar != nil && v.calendar.Restricted(sig.CreatedAt) {
		return nil, &Rejection{
			SignalID: sig.SignalID,
			Reason:   ReasonRestrictedEvent,
			Detail:   sig.CreatedAt.UTC().Format("2006-01-02"),
		}
	}

	riskPct := 0.0
	if acct.Equity > 0 {
		riskPct = dollarRisk / acct.Equity * 100
	}
	return &model.ValidatedSignal{
		Signal:       *sig,
		PositionSize: size,
		DollarRisk:   dollarRisk,
		RiskPct:      riskPct,
	}, nil
}
