package feed

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"dualstrat/internal/model"
)

// Replay streams candles from a CSV file into out, preserving file order.
// Expected columns: instrument,ts,open,high,low,close,volume with ts in
// RFC3339. A header row is skipped if present. The channel is not closed;
// the caller owns it.
func Replay(ctx context.Context, path string, out chan<- model.Candle) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 7

	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("replay line %d: %w", line+1, err)
		}
		line++

		c, err := parseRow(rec)
		if err != nil {
			if line == 1 {
				continue // header row
			}
			return fmt.Errorf("replay line %d: %w", line, err)
		}

		select {
		case out <- c:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func parseRow(rec []string) (model.Candle, error) {
	ts, err := time.Parse(time.RFC3339, rec[1])
	if err != nil {
		return model.Candle{}, fmt.Errorf("timestamp: %w", err)
	}
	vals := make([]float64, 5)
	for i, field := range rec[2:7] {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+2, err)
		}
		vals[i] = v
	}
	return model.Candle{
		Instrument: rec[0],
		TS:         ts,
		Open:       vals[0],
		High:       vals[1],
		Low:        vals[2],
		Close:      vals[3],
		Volume:     vals[4],
	}, nil
}
