package journal

import (
	"path/filepath"
	"testing"
	"time"

	"dualstrat/internal/model"
)

func TestJournal_DecisionRoundTrip(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "decisions.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	ts := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC)
	in := model.ArbiterDecision{
		SignalID:     "2025-06-02T16:00:00Z-NQ-000",
		StrategyID:   "ICC",
		Instrument:   "NQ",
		Status:       model.DecisionAccepted,
		ResultingPos: 3,
		DecidedAt:    ts,
	}
	if err := j.RecordDecision(in); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordDecision(model.ArbiterDecision{
		SignalID: "2025-06-02T16:05:00Z-NQ-000", StrategyID: "GAPINV",
		Instrument: "NQ", Status: model.DecisionRejected,
		Reason: "priority:continuation", DecidedAt: ts.Add(5 * time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	got, err := j.RecentDecisions(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("decisions = %d, want 2", len(got))
	}
	// Newest first.
	if got[0].Reason != "priority:continuation" {
		t.Errorf("first reason = %q, want priority:continuation", got[0].Reason)
	}
	if got[1].SignalID != in.SignalID || got[1].ResultingPos != 3 {
		t.Errorf("round trip mismatch: %+v", got[1])
	}
	if !got[1].DecidedAt.Equal(ts) {
		t.Errorf("decided_at = %v, want %v", got[1].DecidedAt, ts)
	}
}

func TestJournal_RecordEvent(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "decisions.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	ev := model.CloseTradeEvent{
		Event: model.EventCloseTrade, Symbol: "NQ",
		Action: "FLATTEN", Reason: "STOP_HIT",
	}
	if err := j.RecordEvent(ev.Event, ev.Symbol, model.MarshalEvent(ev)); err != nil {
		t.Fatal(err)
	}
}
