package risk

import (
	"math"
	"testing"
	"time"

	"dualstrat/config"
	"dualstrat/internal/model"
)

func testSignal(strategyID string, entry, stop, tp float64) *model.Signal {
	dir := model.DirLong
	if stop > entry {
		dir = model.DirShort
	}
	ts := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	return &model.Signal{
		StrategyID: strategyID,
		SignalID:   model.NewSignalID(strategyID, "NQ", ts),
		Instrument: "NQ",
		Direction:  dir,
		Entry:      entry,
		Stop:       stop,
		TakeProfit: []float64{tp},
		MaxLossUSD: 750,
		CreatedAt:  ts,
	}
}

func newTestValidator(t *testing.T, dates ...string) *Validator {
	t.Helper()
	cal, err := NewCalendar(dates)
	if err != nil {
		t.Fatal(err)
	}
	return NewValidator(config.DefaultStrategy(), cal)
}

func TestValidate_SizesPosition(t *testing.T) {
	v := newTestValidator(t)

	// 10 points = 40 ticks on NQ at $5/tick: floor(750 / 200) = 3 contracts.
	sig := testSignal("ICC", 18000, 17990, 18030)
	vs, rej := v.Validate(sig, AccountState{Equity: 150000})
	if rej != nil {
		t.Fatalf("unexpected rejection: %v", rej)
	}
	if vs.PositionSize != 3 {
		t.Errorf("position size = %d, want 3", vs.PositionSize)
	}
	if vs.DollarRisk != 600 {
		t.Errorf("dollar risk = %v, want 600", vs.DollarRisk)
	}
	if math.Abs(vs.RiskPct-0.4) > 1e-9 {
		t.Errorf("risk pct = %v, want 0.4", vs.RiskPct)
	}
}

func TestValidate_RMultipleExamples(t *testing.T) {
	v := newTestValidator(t)
	acct := AccountState{Equity: 150000}

	long := testSignal("ICC", 18000, 17950, 18150)
	if math.Abs(long.RMultiple()-3.0) > 1e-9 {
		t.Fatalf("long R = %v, want 3.0", long.RMultiple())
	}
	if _, rej := v.Validate(long, acct); rej != nil {
		t.Errorf("long rejected: %v", rej)
	}

	short := testSignal("ICC", 18000, 18050, 17850)
	if math.Abs(short.RMultiple()-3.0) > 1e-9 {
		t.Fatalf("short R = %v, want 3.0", short.RMultiple())
	}
	if _, rej := v.Validate(short, acct); rej != nil {
		t.Errorf("short rejected: %v", rej)
	}
}

func TestValidate_RejectionReasons(t *testing.T) {
	acct := AccountState{Equity: 150000}

	tests := []struct {
		name       string
		mutate     func(*model.Signal)
		acct       AccountState
		dates      []string
		wantReason string
	}{
		{
			name:       "unknown symbol",
			mutate:     func(s *model.Signal) { s.Instrument = "6E" },
			acct:       acct,
			wantReason: ReasonUnsupportedInstrument,
		},
		{
			name: "stop too wide for budget",
			mutate: func(s *model.Signal) {
				s.Stop = 17960 // 160 ticks: 750/(160*5) < 1
				s.TakeProfit = []float64{18120}
			},
			acct:       acct,
			wantReason: ReasonSizeTooSmall,
		},
		{
			name: "r below strategy minimum",
			mutate: func(s *model.Signal) {
				s.TakeProfit = []float64{18018} // R = 1.8 < ICC minimum 2.0
			},
			acct:       acct,
			wantReason: ReasonRMultipleTooLow,
		},
		{
			name:       "daily limit",
			mutate:     func(s *model.Signal) {},
			acct:       AccountState{Equity: 150000, RealizedDailyLoss: 1200},
			wantReason: ReasonDailyLimitExceeded,
		},
		{
			name:       "restricted event date",
			mutate:     func(s *model.Signal) {},
			acct:       acct,
			dates:      []string{"2025-06-02"},
			wantReason: ReasonRestrictedEvent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(t, tt.dates...)
			sig := testSignal("ICC", 18000, 17990, 18030)
			tt.mutate(sig)
			_, rej := v.Validate(sig, tt.acct)
			if rej == nil {
				t.Fatal("expected rejection")
			}
			if rej.Reason != tt.wantReason {
				t.Errorf("reason = %s, want %s", rej.Reason, tt.wantReason)
			}
		})
	}
}

func TestValidate_PerStrategyMinimumR(t *testing.T) {
	v := newTestValidator(t)
	acct := AccountState{Equity: 150000}

	// R = 1.8 clears the gap-inversion floor (1.5) but not the
	// continuation floor (2.0).
	if _, rej := v.Validate(testSignal("GAPINV", 18000, 17990, 18018), acct); rej != nil {
		t.Errorf("GAPINV at R=1.8 rejected: %v", rej)
	}
	if _, rej := v.Validate(testSignal("ICC", 18000, 17990, 18018), acct); rej == nil {
		t.Error("ICC at R=1.8 should be rejected")
	}
}

func TestValidate_CheckOrderIsDeterministic(t *testing.T) {
	// A signal failing both sizing and the event calendar must surface the
	// earlier check's reason.
	v := newTestValidator(t, "2025-06-02")
	sig := testSignal("ICC", 18000, 17960, 18120)
	_, rej := v.Validate(sig, AccountState{Equity: 150000})
	if rej == nil || rej.Reason != ReasonSizeTooSmall {
		t.Errorf("rejection = %v, want %s first", rej, ReasonSizeTooSmall)
	}
}

func TestCalendar_Restricted(t *testing.T) {
	cal, err := NewCalendar([]string{"2025-06-18"})
	if err != nil {
		t.Fatal(err)
	}
	if !cal.Restricted(time.Date(2025, 6, 18, 19, 0, 0, 0, time.UTC)) {
		t.Error("expected 2025-06-18 to be restricted")
	}
	if cal.Restricted(time.Date(2025, 6, 19, 19, 0, 0, 0, time.UTC)) {
		t.Error("2025-06-19 should not be restricted")
	}
	if _, err := NewCalendar([]string{"06/18/2025"}); err == nil {
		t.Error("expected error for malformed date")
	}
}
