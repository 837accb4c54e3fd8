// Package metrics exposes Prometheus instrumentation for the signal core and
// serves the /metrics and /healthz endpoints.
package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CandlesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualstrat_candles_processed_total",
		Help: "Completed candles processed per instrument.",
	}, []string{"instrument"})

	DataErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualstrat_data_errors_total",
		Help: "Candles dropped for malformed or out-of-order data.",
	}, []string{"instrument"})

	SignalsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualstrat_signals_generated_total",
		Help: "Raw signals emitted by the pattern detectors.",
	}, []string{"strategy", "instrument"})

	SignalsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualstrat_signals_rejected_total",
		Help: "Signals rejected by risk validation, keyed by reason.",
	}, []string{"reason"})

	ArbiterDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualstrat_arbiter_decisions_total",
		Help: "Arbiter verdicts keyed by status.",
	}, []string{"status"})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dualstrat_open_positions",
		Help: "Non-closed position records currently held.",
	})

	DailyLossUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dualstrat_daily_loss_usd",
		Help: "Realized loss in USD for the current session.",
	})

	InvariantViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dualstrat_invariant_violations_total",
		Help: "Position table invariant violations; any value above zero halts the instrument.",
	}, []string{"instrument"})

	GatewayClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dualstrat_gateway_clients",
		Help: "Connected websocket gateway clients.",
	})
)

// Serve runs the metrics/health HTTP server until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
