// Package session resolves wall-clock priority windows for the execution
// arbiter: continuation hours favor the trend-continuation strategy, reversal
// windows favor the gap-inversion strategy. Windows are evaluated in the
// exchange timezone, configured as a fixed UTC offset.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a half-open [start, end) minute-of-day range. A window whose end
// precedes its start wraps past midnight.
type Window struct {
	startMin int
	endMin   int
}

// Contains reports whether the minute-of-day m falls inside the window.
func (w Window) Contains(m int) bool {
	if w.startMin <= w.endMin {
		return m >= w.startMin && m < w.endMin
	}
	// Overnight window, e.g. 17:00-02:00
	return m >= w.startMin || m < w.endMin
}

// Clock evaluates priority windows against a fixed exchange timezone.
type Clock struct {
	loc          *time.Location
	continuation []Window
	reversal     []Window
}

// New parses "HH:MM-HH:MM" ranges into a Clock. tzOffsetMinutes is the
// exchange offset from UTC (e.g. -360 for US central time).
func New(continuationHours, reversalWindows []string, tzOffsetMinutes int) (*Clock, error) {
	cont, err := parseWindows(continuationHours)
	if err != nil {
		return nil, fmt.Errorf("continuation_hours: %w", err)
	}
	rev, err := parseWindows(reversalWindows)
	if err != nil {
		return nil, fmt.Errorf("reversal_windows: %w", err)
	}
	name := fmt.Sprintf("UTC%+d", tzOffsetMinutes/60)
	return &Clock{
		loc:          time.FixedZone(name, tzOffsetMinutes*60),
		continuation: cont,
		reversal:     rev,
	}, nil
}

// InContinuation reports whether t falls inside any continuation window.
func (c *Clock) InContinuation(t time.Time) bool {
	return contains(c.continuation, c.minuteOfDay(t))
}

// InReversal reports whether t falls inside any reversal window.
func (c *Clock) InReversal(t time.Time) bool {
	return contains(c.reversal, c.minuteOfDay(t))
}

func (c *Clock) minuteOfDay(t time.Time) int {
	local := t.In(c.loc)
	return local.Hour()*60 + local.Minute()
}

func contains(windows []Window, m int) bool {
	for _, w := range windows {
		if w.Contains(m) {
			return true
		}
	}
	return false
}

func parseWindows(ranges []string) ([]Window, error) {
	out := make([]Window, 0, len(ranges))
	for _, r := range ranges {
		parts := strings.Split(r, "-")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid range %q, want HH:MM-HH:MM", r)
		}
		start, err := parseHHMM(parts[0])
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: %w", r, err)
		}
		end, err := parseHHMM(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: %w", r, err)
		}
		out = append(out, Window{startMin: start, endMin: end})
	}
	return out, nil
}

func parseHHMM(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}
