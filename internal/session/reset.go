package session

import (
	"context"
	"time"
)

// NextReset returns the first instant at or after now matching the daily
// "HH:MM" UTC reset time.
func NextReset(now time.Time, resetUTC string) (time.Time, error) {
	hm, err := parseHHMM(resetUTC)
	if err != nil {
		return time.Time{}, err
	}
	u := now.UTC()
	next := time.Date(u.Year(), u.Month(), u.Day(), hm/60, hm%60, 0, 0, time.UTC)
	if !next.After(u) {
		next = next.Add(24 * time.Hour)
	}
	return next, nil
}

// RunDailyReset invokes fn at every daily reset time until ctx is cancelled.
func RunDailyReset(ctx context.Context, resetUTC string, fn func(time.Time)) error {
	for {
		next, err := NextReset(time.Now(), resetUTC)
		if err != nil {
			return err
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case t := <-timer.C:
			fn(t)
		}
	}
}
