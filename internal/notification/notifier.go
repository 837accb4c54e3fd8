// Package notification delivers trade alerts to external channels (Telegram,
// generic webhooks). Delivery is best-effort: a failed alert is logged and
// dropped, never retried, and never blocks the signal path.
package notification

import (
	"context"
	"fmt"
	"log/slog"

	"dualstrat/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is one notification payload.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all delivery backends.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of delivering them. Used when no backend
// is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	slog.Info("alert", "level", alert.Level, "title", alert.Title, "message", alert.Message)
	return nil
}

// Multi fans one alert out to several backends, keeping the first error.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var firstErr error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FromDecision formats an arbiter verdict as an alert. Rejections are
// warnings so operators can spot risk-limit pressure.
func FromDecision(d model.ArbiterDecision) Alert {
	level := AlertInfo
	if d.Status == model.DecisionRejected {
		level = AlertWarning
	}
	title := fmt.Sprintf("%s %s: %s", d.Instrument, d.StrategyID, d.Status)
	msg := fmt.Sprintf("signal %s", d.SignalID)
	if d.Reason != "" {
		msg += fmt.Sprintf("\nreason: %s", d.Reason)
	}
	if d.Status != model.DecisionRejected {
		msg += fmt.Sprintf("\nposition size: %d", d.ResultingPos)
	}
	return Alert{Level: level, Title: title, Message: msg}
}

// FromClose formats a position close as an alert. Stop-outs are warnings.
func FromClose(ev model.CloseTradeEvent) Alert {
	level := AlertInfo
	if ev.Reason == "STOP_HIT" {
		level = AlertWarning
	}
	return Alert{
		Level:   level,
		Title:   fmt.Sprintf("%s closed", ev.Symbol),
		Message: fmt.Sprintf("action: %s\nreason: %s", ev.Action, ev.Reason),
	}
}
