package model

import (
	"testing"
	"time"
)

func TestNewSignalID_DistinctAcrossStrategies(t *testing.T) {
	// Both detectors can fire on the same candle of the same instrument, so
	// the strategy must be part of the key.
	ts := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	icc := NewSignalID("ICC", "NQ", ts)
	gapinv := NewSignalID("GAPINV", "NQ", ts)
	if icc == gapinv {
		t.Fatalf("same ID %q for two strategies on one candle", icc)
	}
}

func TestNewSignalID_DistinctAcrossInstruments(t *testing.T) {
	ts := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	if NewSignalID("ICC", "NQ", ts) == NewSignalID("ICC", "ES", ts) {
		t.Fatal("same ID for two instruments")
	}
	if NewSignalID("ICC", "NQ", ts) == NewSignalID("ICC", "NQ", ts.Add(time.Minute)) {
		t.Fatal("same ID for two candle timestamps")
	}
}
