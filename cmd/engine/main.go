// cmd/engine runs the live signal core: candle feed in, validated signals
// through the arbiter, decisions and lifecycle events out to SQLite, Redis,
// the gateway websocket, and optional Telegram/webhook alerts.
//
// Config (env vars):
//
//	FEED_WS_URL       — candle feed WebSocket URL ("" = simulated candles)
//	FEED_USER_ID      — feed account id
//	FEED_TOTP_SECRET  — base32 TOTP secret for feed auth
//	REDIS_ADDR        — Redis address               (default: "localhost:6379")
//	SQLITE_PATH       — decision journal path       (default: "data/decisions.db")
//	METRICS_ADDR      — Prometheus listen address   (default: ":9090")
//	GATEWAY_ADDR      — gateway listen address      (default: ":8765")
//	STRATEGY_FILE     — YAML parameter file         (default: "config/strategy.yaml")
//	TRADE_MODE        — EVAL or LIVE                (default: "EVAL")
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dualstrat/config"
	"dualstrat/internal/arbiter"
	"dualstrat/internal/feed"
	"dualstrat/internal/gateway"
	"dualstrat/internal/journal"
	"dualstrat/internal/logger"
	"dualstrat/internal/metrics"
	"dualstrat/internal/model"
	"dualstrat/internal/notification"
	"dualstrat/internal/risk"
	"dualstrat/internal/session"
	redisstore "dualstrat/internal/store/redis"
	"dualstrat/internal/worker"
)

func main() {
	logger.Init("engine", slog.LevelInfo)

	cfg := config.Load()
	sf, err := config.LoadStrategy(cfg.StrategyFile)
	if err != nil {
		fatal("strategy file", err)
	}
	slog.Info("engine starting",
		"mode", cfg.Mode, "instruments", sf.Symbols(),
		"continuation", sf.Continuation.Enabled, "gap_inversion", sf.GapInversion.Enabled)

	clock, err := session.New(sf.Arbiter.ContinuationHours, sf.Arbiter.ReversalWindows, sf.Arbiter.TZOffsetMinutes)
	if err != nil {
		fatal("priority windows", err)
	}
	cal, err := risk.NewCalendar(sf.RestrictedEvents)
	if err != nil {
		fatal("restricted events", err)
	}
	validator := risk.NewValidator(sf, cal)

	jrnl, err := journal.Open(cfg.SQLitePath)
	if err != nil {
		fatal("journal", err)
	}
	defer jrnl.Close()

	rw, err := redisstore.New(redisstore.WriterConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		fatal("redis", err)
	}
	defer rw.Close()

	notifier := buildNotifier(sf.Notification)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		slog.Info("shutdown signal received", "signal", s.String())
		cancel()
	}()

	arb := arbiter.New(sf, clock, cfg.Mode)
	go arb.Run(ctx)

	hub := gateway.NewHub(arb, jrnl)
	go func() {
		if err := hub.Serve(ctx, cfg.GatewayAddr); err != nil {
			slog.Error("gateway stopped", "err", err)
		}
	}()
	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			slog.Error("metrics server stopped", "err", err)
		}
	}()

	// One worker per instrument; each owns its indicator and detector state.
	workers := make(map[string]*worker.Worker, len(sf.Instruments))
	for sym, spec := range sf.Instruments {
		inst := model.Instrument{Symbol: sym, TickSize: spec.TickSize, TickValue: spec.TickValue}
		w := worker.New(inst, sf, validator, arb)
		workers[sym] = w
		go w.Run(ctx)
	}

	// Decisions fan out to the journal, Redis, the gateway, and alerts.
	redisDecisions := make(chan model.ArbiterDecision, 256)
	go rw.RunDecisions(ctx, redisDecisions)
	go func() {
		defer close(redisDecisions)
		for d := range arb.Decisions() {
			if err := jrnl.RecordDecision(d); err != nil {
				slog.Warn("journal decision write failed", "signal_id", d.SignalID, "err", err)
			}
			select {
			case redisDecisions <- d:
			default:
				slog.Warn("redis decision queue full, dropping", "signal_id", d.SignalID)
			}
			hub.Broadcast("decision", d.JSON())
			if err := notifier.Send(ctx, notification.FromDecision(d)); err != nil {
				slog.Warn("decision alert failed", "err", err)
			}
		}
	}()

	// Lifecycle events go to the journal, Redis, and the gateway; closes also
	// raise an alert.
	go func() {
		for ev := range arb.Events() {
			eventType, symbol := eventMeta(ev)
			payload := model.MarshalEvent(ev)
			if err := jrnl.RecordEvent(eventType, symbol, payload); err != nil {
				slog.Warn("journal event write failed", "event", eventType, "err", err)
			}
			rw.PublishEvent(ctx, eventType, symbol, payload)
			hub.Broadcast("event", payload)
			if ct, ok := ev.(model.CloseTradeEvent); ok {
				if err := notifier.Send(ctx, notification.FromClose(ct)); err != nil {
					slog.Warn("close alert failed", "err", err)
				}
			}
		}
	}()

	go func() {
		err := session.RunDailyReset(ctx, sf.Account.SessionResetUTC, func(t time.Time) {
			arb.ResetSession(t)
			for _, w := range workers {
				w.ResetSession()
			}
		})
		if err != nil && ctx.Err() == nil {
			slog.Error("daily reset scheduler stopped", "err", err)
		}
	}()

	candles := startFeed(ctx, cfg, sf)
	for c := range candles {
		w, ok := workers[c.Instrument]
		if !ok {
			slog.Warn("candle for unknown instrument", "instrument", c.Instrument)
			continue
		}
		select {
		case w.Candles() <- c:
		case <-ctx.Done():
		}
	}
	slog.Info("feed closed, engine exiting")
}

// startFeed connects the live websocket feed, or falls back to the
// random-walk simulator when FEED_WS_URL is unset.
func startFeed(ctx context.Context, cfg *config.Config, sf *config.StrategyFile) <-chan model.Candle {
	if cfg.FeedURL != "" {
		fc := feed.NewClient(feed.ClientConfig{
			URL:        cfg.FeedURL,
			UserID:     cfg.FeedUserID,
			TOTPSecret: cfg.FeedTOTPSecret,
			Symbols:    sf.Symbols(),
		})
		go fc.Run(ctx)
		return fc.Candles()
	}

	slog.Warn("FEED_WS_URL not set, running simulated candles")
	starts := make(map[string]float64, len(sf.Instruments))
	for sym := range sf.Instruments {
		starts[sym] = simStartPrice(sym)
	}
	sim := feed.NewSimulator(feed.SimulatorConfig{Instruments: starts, Interval: time.Minute})
	go sim.Run(ctx)
	return sim.Candles()
}

func simStartPrice(sym string) float64 {
	prices := map[string]float64{
		"NQ": 20000,
		"ES": 6000,
		"GC": 2400,
		"CL": 75,
	}
	if p, ok := prices[sym]; ok {
		return p
	}
	return 10000
}

// eventMeta extracts the event type and symbol for journaling.
func eventMeta(ev any) (string, string) {
	switch e := ev.(type) {
	case model.NewPositionEvent:
		return e.Event, e.Symbol
	case model.TPFilledEvent:
		return e.Event, e.Symbol
	case model.StopUpdateEvent:
		return e.Event, e.Symbol
	case model.CloseTradeEvent:
		return e.Event, e.Symbol
	default:
		return "UNKNOWN", ""
	}
}

func buildNotifier(cfg config.NotificationConfig) notification.Notifier {
	var backends notification.Multi
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.WebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if len(backends) == 0 {
		return notification.NewLogNotifier()
	}
	return backends
}

func fatal(what string, err error) {
	slog.Error(what+" init failed", "err", err)
	os.Exit(1)
}
