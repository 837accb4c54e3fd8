// Package window provides a fixed-capacity rolling window of candles with
// random access and swing-extreme scans. Detectors use it for lookback checks
// (swing highs/lows, probe detection) without unbounded history growth.
package window

import "dualstrat/internal/model"

// Window is a single-owner rolling candle window backed by ring storage.
// Capacity is rounded up to the next power of two for bitwise indexing.
type Window struct {
	buf   []model.Candle
	mask  uint64
	count uint64 // total candles ever appended
}

// New creates a window holding at most capacity candles. Minimum capacity is 2.
func New(capacity int) *Window {
	c := nextPow2(capacity)
	if c < 2 {
		c = 2
	}
	return &Window{
		buf:  make([]model.Candle, c),
		mask: uint64(c - 1),
	}
}

// Append adds a candle, evicting the oldest when full.
func (w *Window) Append(c model.Candle) {
	w.buf[w.count&w.mask] = c
	w.count++
}

// Len returns the number of candles currently held.
func (w *Window) Len() int {
	if w.count < uint64(len(w.buf)) {
		return int(w.count)
	}
	return len(w.buf)
}

// Cap returns the window capacity.
func (w *Window) Cap() int { return len(w.buf) }

// At returns the i-th held candle, 0 = oldest. ok is false when out of range.
func (w *Window) At(i int) (model.Candle, bool) {
	n := w.Len()
	if i < 0 || i >= n {
		return model.Candle{}, false
	}
	start := w.count - uint64(n)
	return w.buf[(start+uint64(i))&w.mask], true
}

// Last returns the most recent candle. ok is false when empty.
func (w *Window) Last() (model.Candle, bool) {
	n := w.Len()
	if n == 0 {
		return model.Candle{}, false
	}
	return w.At(n - 1)
}

// HighestHigh scans the most recent n candles, excluding the last skipLast,
// and returns the highest high. ok is false when no candles are in range.
func (w *Window) HighestHigh(n, skipLast int) (float64, bool) {
	lo, hi, ok := w.scanRange(n, skipLast)
	if !ok {
		return 0, false
	}
	best := 0.0
	for i := lo; i < hi; i++ {
		c, _ := w.At(i)
		if c.High > best || i == lo {
			best = c.High
		}
	}
	return best, true
}

// LowestLow scans the most recent n candles, excluding the last skipLast,
// and returns the lowest low. ok is false when no candles are in range.
func (w *Window) LowestLow(n, skipLast int) (float64, bool) {
	lo, hi, ok := w.scanRange(n, skipLast)
	if !ok {
		return 0, false
	}
	best := 0.0
	for i := lo; i < hi; i++ {
		c, _ := w.At(i)
		if c.Low < best || i == lo {
			best = c.Low
		}
	}
	return best, true
}

// scanRange converts (n, skipLast) into [lo, hi) window indices.
func (w *Window) scanRange(n, skipLast int) (int, int, bool) {
	total := w.Len()
	hi := total - skipLast
	if hi <= 0 {
		return 0, 0, false
	}
	lo := hi - n
	if lo < 0 {
		lo = 0
	}
	if lo >= hi {
		return 0, 0, false
	}
	return lo, hi, true
}

// nextPow2 returns the smallest power of 2 >= n.
func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
