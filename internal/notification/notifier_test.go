package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dualstrat/internal/model"
)

func TestFromDecision(t *testing.T) {
	a := FromDecision(model.ArbiterDecision{
		SignalID: "sig-1", StrategyID: "GAPINV", Instrument: "NQ",
		Status: model.DecisionRejected, Reason: "priority:continuation",
	})
	if a.Level != AlertWarning {
		t.Errorf("level = %s, want WARNING for rejection", a.Level)
	}

	a = FromDecision(model.ArbiterDecision{
		SignalID: "sig-2", StrategyID: "ICC", Instrument: "NQ",
		Status: model.DecisionAccepted, ResultingPos: 3,
	})
	if a.Level != AlertInfo {
		t.Errorf("level = %s, want INFO for acceptance", a.Level)
	}
}

func TestFromClose(t *testing.T) {
	a := FromClose(model.CloseTradeEvent{Symbol: "NQ", Action: "FLATTEN", Reason: "STOP_HIT"})
	if a.Level != AlertWarning {
		t.Errorf("level = %s, want WARNING for stop out", a.Level)
	}
	a = FromClose(model.CloseTradeEvent{Symbol: "NQ", Action: "FLATTEN", Reason: "FINAL_TP"})
	if a.Level != AlertInfo {
		t.Errorf("level = %s, want INFO for final TP", a.Level)
	}
}

func TestWebhookNotifier_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Send(context.Background(), Alert{Level: AlertInfo, Title: "t", Message: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if got["title"] != "t" || got["level"] != "INFO" {
		t.Errorf("payload = %v", got)
	}
}

func TestWebhookNotifier_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	if err := n.Send(context.Background(), Alert{Title: "t"}); err == nil {
		t.Fatal("expected error on non-2xx status")
	}
}
