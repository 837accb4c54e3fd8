// Package redis publishes arbiter decisions and position lifecycle events to
// Redis: XADD onto capped streams for durable consumers, plus PubSub fan-out
// for live subscribers.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"dualstrat/internal/model"
)

const (
	decisionStream = "dualstrat:decisions"
	eventStream    = "dualstrat:events"

	decisionChannel = "pub:dualstrat:decisions"
	eventChannel    = "pub:dualstrat:events"

	// Roughly a week of decisions at normal signal rates.
	streamMaxLen = 10000
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string
	Password string
	DB       int
}

// Writer publishes decisions and lifecycle events.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New connects and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", cfg.Addr)
	return &Writer{client: client}, nil
}

// RunDecisions consumes the decision stream and publishes each verdict.
// Blocks until ctx is cancelled or the channel is closed.
func (w *Writer) RunDecisions(ctx context.Context, decisions <-chan model.ArbiterDecision) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-decisions:
			if !ok {
				return
			}
			w.writeDecision(ctx, d)
		}
	}
}

func (w *Writer) writeDecision(ctx context.Context, d model.ArbiterDecision) {
	payload := string(d.JSON())
	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: decisionStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"signal_id":  d.SignalID,
			"instrument": d.Instrument,
			"status":     d.Status,
			"json":       payload,
		},
	})
	pipe.Publish(ctx, decisionChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("redis decision write failed", "signal_id", d.SignalID, "err", err)
	}
}

// PublishEvent writes one lifecycle event to the event stream and channel.
func (w *Writer) PublishEvent(ctx context.Context, eventType, symbol string, payload []byte) {
	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: eventStream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"event":  eventType,
			"symbol": symbol,
			"json":   string(payload),
		},
	})
	pipe.Publish(ctx, eventChannel, string(payload))
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("redis event write failed", "event", eventType, "symbol", symbol, "err", err)
	}
}

// Close closes the client.
func (w *Writer) Close() error {
	return w.client.Close()
}
