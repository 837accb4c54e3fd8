package feed

import (
	"context"
	"math/rand"
	"time"

	"dualstrat/internal/model"
)

// SimulatorConfig configures the random-walk candle generator.
type SimulatorConfig struct {
	Instruments map[string]float64 // symbol -> starting price
	Interval    time.Duration      // candle period (default 1m)
	Seed        int64              // 0 = time-based
}

// Simulator emits random-walk candles for paper runs without a live feed.
// A fixed seed makes a run reproducible.
type Simulator struct {
	cfg     SimulatorConfig
	candles chan model.Candle
}

// NewSimulator creates a simulator feed.
func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Simulator{
		cfg:     cfg,
		candles: make(chan model.Candle, 256),
	}
}

// Candles returns the stream of generated candles.
func (s *Simulator) Candles() <-chan model.Candle {
	return s.candles
}

// Run generates one candle per instrument per interval until ctx is
// cancelled. The candle channel is closed on exit.
func (s *Simulator) Run(ctx context.Context) {
	defer close(s.candles)

	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	prices := make(map[string]float64, len(s.cfg.Instruments))
	for sym, p := range s.cfg.Instruments {
		prices[sym] = p
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			ts := now.UTC().Truncate(s.cfg.Interval)
			for sym, open := range prices {
				c := walkCandle(rng, sym, open, ts)
				prices[sym] = c.Close
				select {
				case s.candles <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// walkCandle applies a +/-0.1% drift with intrabar range around it.
func walkCandle(rng *rand.Rand, sym string, open float64, ts time.Time) model.Candle {
	drift := open * (rng.Float64()*0.2 - 0.1) / 100
	cl := open + drift
	hi, lo := open, cl
	if cl > hi {
		hi, lo = cl, open
	}
	span := open * rng.Float64() * 0.05 / 100
	return model.Candle{
		Instrument: sym,
		TS:         ts,
		Open:       open,
		High:       hi + span,
		Low:        lo - span,
		Close:      cl,
		Volume:     float64(rng.Intn(5000) + 500),
	}
}
