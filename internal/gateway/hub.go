// Package gateway serves the execution collaborator and the operator: a
// websocket hub that streams arbiter decisions and position lifecycle events,
// accepts fill reports on the same connection, and exposes small REST
// endpoints for the current position table and verdict counters.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dualstrat/internal/arbiter"
	"dualstrat/internal/journal"
	"dualstrat/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The gateway sits behind the operator's own network; origin checks are
	// the deployment's concern.
	CheckOrigin: func(*http.Request) bool { return true },
}

// envelope wraps every websocket frame with a type tag.
type envelope struct {
	Type string          `json:"type"` // decision | event
	Data json.RawMessage `json:"data"`
	TS   time.Time       `json:"ts"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans arbiter output out to connected websocket clients.
type Hub struct {
	arb  *arbiter.Arbiter
	jrnl *journal.Journal

	mu      sync.RWMutex
	clients map[*client]bool
}

// NewHub creates a hub over the arbiter and journal.
func NewHub(arb *arbiter.Arbiter, jrnl *journal.Journal) *Hub {
	return &Hub{
		arb:     arb,
		jrnl:    jrnl,
		clients: make(map[*client]bool),
	}
}

// Broadcast sends one tagged payload to every connected client. Slow clients
// are dropped rather than allowed to stall the hub.
func (h *Hub) Broadcast(msgType string, payload []byte) {
	frame, err := json.Marshal(envelope{Type: msgType, Data: payload, TS: time.Now().UTC()})
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			go h.drop(c)
		}
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	metrics.GatewayClients.Set(float64(n))
	slog.Info("gateway client connected", "clients", n)
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	c.conn.Close()
	metrics.GatewayClients.Set(float64(n))
	slog.Info("gateway client disconnected", "clients", n)
}

// serveWS upgrades the connection and starts the client pumps.
func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.drop(c)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(c)
				return
			}
		}
	}
}

// fillReport is the only inbound frame the hub understands: the execution
// collaborator reporting that a stop or take-profit order filled.
type fillReport struct {
	Type       string    `json:"type"` // fill
	Symbol     string    `json:"symbol"`
	Kind       string    `json:"kind"`     // tp | stop
	TPLevel    int       `json:"tp_level"` // 1-based, tp only
	Price      float64   `json:"price"`
	ATR        float64   `json:"atr,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}

// readPump consumes client frames. Fill reports are forwarded to the arbiter;
// anything else is ignored.
func (h *Hub) readPump(c *client) {
	defer h.drop(c)
	c.conn.SetReadLimit(4096)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var rep fillReport
		if err := json.Unmarshal(data, &rep); err != nil || rep.Type != "fill" {
			continue
		}
		kind := arbiter.FillTP
		if rep.Kind == "stop" {
			kind = arbiter.FillStop
		}
		ts := rep.ReportedAt
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		h.arb.OnFill(arbiter.FillEvent{
			Instrument: rep.Symbol,
			Kind:       kind,
			TPLevel:    rep.TPLevel,
			Price:      rep.Price,
			ATR:        rep.ATR,
			TS:         ts,
		})
		slog.Info("fill reported", "symbol", rep.Symbol, "kind", rep.Kind, "price", rep.Price)
	}
}

// Serve runs the gateway HTTP server until ctx is cancelled.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	mux.HandleFunc("/positions", h.handlePositions)
	mux.HandleFunc("/decisions", h.handleDecisions)
	mux.HandleFunc("/stats", h.handleStats)

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "addr", addr)
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

func (h *Hub) handlePositions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.arb.OpenPositions())
}

func (h *Hub) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.arb.Snapshot())
}

func (h *Hub) handleDecisions(w http.ResponseWriter, r *http.Request) {
	if h.jrnl == nil {
		http.Error(w, "journal disabled", http.StatusServiceUnavailable)
		return
	}
	decisions, err := h.jrnl.RecentDecisions(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, decisions)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("gateway response encode failed", "err", err)
	}
}
