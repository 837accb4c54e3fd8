package indicator

import "dualstrat/internal/model"

// ATR calculates Average True Range using Wilder's smoothing method.
// The seed value is the simple mean of the first `period` true ranges, after
// which ATR_t = ATR_{t-1} + (TR_t - ATR_{t-1})/period. Update is O(1).
type ATR struct {
	period    int
	count     int
	sumTR     float64
	prevClose float64
	hasPrev   bool
	current   float64
}

// NewATR creates a new ATR indicator with the given period (typically 14).
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return "ATR" }

// Update feeds a new candle and recalculates.
func (a *ATR) Update(candle model.Candle) {
	tr := a.trueRange(candle)
	a.prevClose = candle.Close
	a.hasPrev = true
	a.count++

	if a.count <= a.period {
		a.sumTR += tr
		if a.count == a.period {
			a.current = a.sumTR / float64(a.period)
		}
		return
	}

	// Wilder smoothing
	a.current += (tr - a.current) / float64(a.period)
}

// Value returns the current ATR. Returns 0 before the warm-up completes.
func (a *ATR) Value() float64 { return a.current }

// Ready returns true once `period` candles have been accumulated.
func (a *ATR) Ready() bool { return a.count >= a.period }

func (a *ATR) trueRange(c model.Candle) float64 {
	hl := c.High - c.Low
	if !a.hasPrev {
		return hl
	}
	hc := c.High - a.prevClose
	if hc < 0 {
		hc = -hc
	}
	lc := c.Low - a.prevClose
	if lc < 0 {
		lc = -lc
	}
	tr := hl
	if hc > tr {
		tr = hc
	}
	if lc > tr {
		tr = lc
	}
	return tr
}

// Reset clears the ATR state for reuse.
func (a *ATR) Reset() {
	a.count = 0
	a.sumTR = 0
	a.prevClose = 0
	a.hasPrev = false
	a.current = 0
}
