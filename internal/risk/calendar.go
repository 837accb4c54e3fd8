package risk

import (
	"fmt"
	"time"
)

// Calendar holds the restricted-event dates (FOMC, NFP, CPI and similar)
// on which new signals are rejected. Dates are compared in UTC.
type Calendar struct {
	dates map[string]struct{}
}

// NewCalendar parses YYYY-MM-DD date strings into a Calendar.
func NewCalendar(dates []string) (*Calendar, error) {
	c := &Calendar{dates: make(map[string]struct{}, len(dates))}
	for _, d := range dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return nil, fmt.Errorf("restricted event date %q: %w", d, err)
		}
		c.dates[d] = struct{}{}
	}
	return c, nil
}

// Restricted reports whether t falls on a restricted event date.
func (c *Calendar) Restricted(t time.Time) bool {
	_, ok := c.dates[t.UTC().Format("2006-01-02")]
	return ok
}
