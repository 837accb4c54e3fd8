package arbiter

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"dualstrat/internal/model"
)

// livePositionsOK verifies the table invariant: every held record is
// non-closed with positive size, and there is at most one per instrument
// (structural, the table is keyed by symbol).
func livePositionsOK(a *Arbiter) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for sym, rec := range a.positions {
		if rec.Instrument != sym || rec.State == model.PositionClosed || rec.Size <= 0 {
			return false
		}
	}
	return true
}

func propSignal(strat int, sym string, dirN, hour int) *model.ValidatedSignal {
	strategyID := "ICC"
	if strat == 1 {
		strategyID = "GAPINV"
	}
	dir := model.DirLong
	entry, stop := 18000.0, 17990.0
	tps := []float64{18020, 18040}
	if dirN == 1 {
		dir = model.DirShort
		stop = 18010
		tps = []float64{17980, 17960}
	}
	ts := time.Date(2025, 6, 2, hour, 15, 0, 0, time.UTC)
	return &model.ValidatedSignal{
		Signal: model.Signal{
			StrategyID: strategyID,
			SignalID:   model.NewSignalID(strategyID, sym, ts),
			Instrument: sym,
			Direction:  dir,
			Entry:      entry,
			Stop:       stop,
			TakeProfit: tps,
			MaxLossUSD: 750,
			CreatedAt:  ts,
		},
		PositionSize: 3,
		DollarRisk:   600,
	}
}

func TestArbiter_RandomInterleavings_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	symbols := []string{"NQ", "ES"}

	properties.Property("table and risk invariants hold under any interleaving", prop.ForAll(
		func(kinds, insts, strats, dirs, hours []int) bool {
			n := len(kinds)
			for _, s := range [][]int{insts, strats, dirs, hours} {
				if len(s) < n {
					n = len(s)
				}
			}

			a := newTestArbiter(t, nil)
			prevLoss := 0.0

			for i := 0; i < n; i++ {
				sym := symbols[insts[i]%2]
				ts := time.Date(2025, 6, 2, hours[i]%24, 15, 0, 0, time.UTC)

				switch kinds[i] % 3 {
				case 0:
					var capBound int
					hadSameDir := false
					if rec, ok := a.Position(sym); ok && rec.Direction == dirOf(dirs[i]) {
						hadSameDir = true
						capBound = int(math.Floor(float64(rec.Size) * 1.5))
					}

					a.handleSignal(propSignal(strats[i]%2, sym, dirs[i]%2, hours[i]%24))

					// Merges never exceed the size cap.
					if rec, ok := a.Position(sym); ok && hadSameDir && rec.Size > capBound {
						return false
					}
				case 1:
					a.handleFill(FillEvent{
						Instrument: sym, Kind: FillTP,
						Price: 18020, ATR: 8, TS: ts,
					})
				case 2:
					a.handleFill(FillEvent{
						Instrument: sym, Kind: FillStop,
						Price: 17990, TS: ts,
					})
				}

				if !livePositionsOK(a) {
					return false
				}
				// Daily loss only ever grows within a session.
				if loss := a.Account().RealizedDailyLoss; loss < prevLoss {
					return false
				} else {
					prevLoss = loss
				}
				// Drain outputs so the buffered channels never stall.
				drainEvents(a)
				for {
					select {
					case <-a.decisions:
						continue
					default:
					}
					break
				}
			}
			return true
		},
		gen.SliceOfN(60, gen.IntRange(0, 2)),
		gen.SliceOfN(60, gen.IntRange(0, 1)),
		gen.SliceOfN(60, gen.IntRange(0, 1)),
		gen.SliceOfN(60, gen.IntRange(0, 1)),
		gen.SliceOfN(60, gen.IntRange(0, 23)),
	))

	properties.TestingRun(t)
}

func dirOf(n int) model.Direction {
	if n%2 == 1 {
		return model.DirShort
	}
	return model.DirLong
}
