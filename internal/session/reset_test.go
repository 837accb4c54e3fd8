package session

import (
	"testing"
	"time"
)

func TestNextReset(t *testing.T) {
	now := time.Date(2025, 6, 2, 20, 0, 0, 0, time.UTC)

	next, err := NextReset(now, "22:00")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 6, 2, 22, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	// Already past today's reset: roll to tomorrow.
	next, err = NextReset(time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC), "22:00")
	if err != nil {
		t.Fatal(err)
	}
	want = time.Date(2025, 6, 3, 22, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	if _, err := NextReset(now, "25:00"); err == nil {
		t.Error("expected error for invalid reset time")
	}
}
