package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dualstrat/internal/model"
)

func TestReplay_ParsesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	data := "instrument,ts,open,high,low,close,volume\n" +
		"NQ,2025-06-02T09:30:00Z,20150,20160,20140,20155,1200\n" +
		"NQ,2025-06-02T09:31:00Z,20155,20165,20150,20160,900\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out := make(chan model.Candle, 4)
	if err := Replay(context.Background(), path, out); err != nil {
		t.Fatal(err)
	}
	close(out)

	var got []model.Candle
	for c := range out {
		got = append(got, c)
	}
	if len(got) != 2 {
		t.Fatalf("candles = %d, want 2", len(got))
	}
	want := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	if !got[0].TS.Equal(want) || got[0].Close != 20155 || got[0].Volume != 1200 {
		t.Errorf("first candle = %+v", got[0])
	}
}

func TestReplay_BadRowFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	data := "NQ,2025-06-02T09:30:00Z,20150,20160,20140,20155,1200\n" +
		"NQ,not-a-time,1,2,3,4,5\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	out := make(chan model.Candle, 4)
	if err := Replay(context.Background(), path, out); err == nil {
		t.Fatal("expected parse error")
	}
}
