package logger

import (
	"context"
	"testing"
)

func TestSignalIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := SignalID(ctx); got != "" {
		t.Errorf("expected empty signal ID, got %q", got)
	}

	ctx = WithSignalID(ctx, "2025-06-02T09:30:00Z-NQ-001")
	if got := SignalID(ctx); got != "2025-06-02T09:30:00Z-NQ-001" {
		t.Errorf("unexpected signal ID %q", got)
	}

	attrs := WithTrace(ctx)
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attr, got %d", len(attrs))
	}
}

func TestWithTraceEmpty(t *testing.T) {
	if attrs := WithTrace(context.Background()); attrs != nil {
		t.Errorf("expected nil attrs, got %v", attrs)
	}
}
