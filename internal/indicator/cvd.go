package indicator

import "dualstrat/internal/model"

// CVD calculates Cumulative Volume Delta from an intrabar buy/sell pressure
// estimate: buy_ratio = clamp((C-L)/(H-L), 0, 1), defaulting to 0.5 on a flat
// candle; delta = volume * (2*buy_ratio - 1). Keeps a bounded history of
// cumulative values for slope and divergence checks.
type CVD struct {
	current   float64
	lastDelta float64

	history    []float64 // cumulative values, oldest first
	maxHistory int
}

// NewCVD creates a CVD indicator retaining up to maxHistory cumulative values.
func NewCVD(maxHistory int) *CVD {
	if maxHistory < 2 {
		maxHistory = 2
	}
	return &CVD{maxHistory: maxHistory}
}

func (c *CVD) Name() string { return "CVD" }

// Update feeds a new candle and accumulates its volume delta.
func (c *CVD) Update(candle model.Candle) {
	c.lastDelta = Delta(candle)
	c.current += c.lastDelta

	c.history = append(c.history, c.current)
	if len(c.history) > c.maxHistory {
		c.history = c.history[len(c.history)-c.maxHistory:]
	}
}

// Delta returns the signed volume delta for a single candle.
func Delta(candle model.Candle) float64 {
	rng := candle.High - candle.Low
	buyRatio := 0.5
	if rng > 0 {
		buyRatio = (candle.Close - candle.Low) / rng
		if buyRatio < 0 {
			buyRatio = 0
		} else if buyRatio > 1 {
			buyRatio = 1
		}
	}
	return candle.Volume * (2*buyRatio - 1)
}

// Value returns the current cumulative volume delta.
func (c *CVD) Value() float64 { return c.current }

// LastDelta returns the per-candle delta from the most recent Update.
func (c *CVD) LastDelta() float64 { return c.lastDelta }

// Ready returns true once at least two cumulative values exist.
func (c *CVD) Ready() bool { return len(c.history) >= 2 }

// Slope returns the least-squares slope of the last n cumulative CVD values.
// Returns 0 when fewer than 2 values are available.
func (c *CVD) Slope(n int) float64 {
	vals := c.tail(n)
	return slope(vals)
}

// Reset clears the CVD history.
func (c *CVD) Reset() {
	c.current = 0
	c.lastDelta = 0
	c.history = c.history[:0]
}

func (c *CVD) tail(n int) []float64 {
	if n > len(c.history) {
		n = len(c.history)
	}
	return c.history[len(c.history)-n:]
}

// slope computes a simple linear regression slope over equally spaced samples.
func slope(vals []float64) float64 {
	n := len(vals)
	if n < 2 {
		return 0
	}
	var xSum, ySum, xySum, x2Sum float64
	for i, v := range vals {
		x := float64(i)
		xSum += x
		ySum += v
		xySum += x * v
		x2Sum += x * x
	}
	fn := float64(n)
	den := fn*x2Sum - xSum*xSum
	if den == 0 {
		return 0
	}
	return (fn*xySum - xSum*ySum) / den
}
