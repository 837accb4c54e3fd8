package model

import (
	"encoding/json"
	"time"
)

// Candle represents one completed OHLCV candle for a single instrument.
// Prices are quoted in points (float64); futures tick sizes are fractional
// (NQ/ES 0.25, CL 0.01), so integer minor-unit storage does not fit here.
// Candles are immutable once ingested.
type Candle struct {
	Instrument string    `json:"instrument"`
	TS         time.Time `json:"ts"` // bucket start time (UTC)
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
}

// Body returns the absolute candle body size |close - open|.
func (c *Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Bullish reports whether the candle closed above its open.
func (c *Candle) Bullish() bool {
	return c.Close > c.Open
}

// Bearish reports whether the candle closed below its open.
func (c *Candle) Bearish() bool {
	return c.Close < c.Open
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c *Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}
