// Package feed supplies completed candles to the pipeline workers: a
// websocket client for the live market-data collaborator, a CSV replay
// reader, and a random-walk simulator for paper runs.
// The feed contract is per-instrument time-ordered,
// duplicate-free candles; price gaps between candles are meaningful input,
// not errors.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pquerna/otp/totp"

	"dualstrat/internal/model"
)

const (
	heartbeatInterval = 10 * time.Second
	readTimeout       = 30 * time.Second

	maxRetryDelay = 60 * time.Second
	baseDelay     = 2 * time.Second
)

// ClientConfig configures the live candle feed connection.
type ClientConfig struct {
	URL        string
	UserID     string
	TOTPSecret string   // feed sessions authenticate with a TOTP code
	Symbols    []string // instruments to subscribe
}

// Client is a reconnecting websocket candle feed.
type Client struct {
	cfg     ClientConfig
	candles chan model.Candle
}

// NewClient creates a feed client. Candles become available on Candles()
// once Run is started.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		cfg:     cfg,
		candles: make(chan model.Candle, 256),
	}
}

// Candles returns the stream of completed candles.
func (c *Client) Candles() <-chan model.Candle {
	return c.candles
}

// authRequest is the login frame. The TOTP code is generated fresh on every
// connection attempt.
type authRequest struct {
	Action  string   `json:"action"` // auth
	UserID  string   `json:"user_id"`
	TOTP    string   `json:"totp"`
	Symbols []string `json:"symbols"`
}

type feedFrame struct {
	Type   string       `json:"type"` // candle | pong | error
	Candle model.Candle `json:"candle,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Run connects and consumes the feed until ctx is cancelled, reconnecting
// with exponential backoff on any failure. The candle channel is closed on
// exit.
func (c *Client) Run(ctx context.Context) {
	defer close(c.candles)

	delay := baseDelay
	for {
		if err := c.session(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("feed disconnected, retrying", "err", err, "delay", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			continue
		}
		return
	}
}

// session runs one connection lifetime: dial, authenticate, pump frames.
func (c *Client) session(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("totp: %w", err)
	}
	if err := conn.WriteJSON(authRequest{
		Action:  "auth",
		UserID:  c.cfg.UserID,
		TOTP:    code,
		Symbols: c.cfg.Symbols,
	}); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	slog.Info("feed connected", "url", c.cfg.URL, "symbols", c.cfg.Symbols)

	// Heartbeat keeps intermediaries from idling the connection out.
	hbCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.heartbeat(hbCtx, conn)

	for {
		if ctx.Err() != nil {
			return nil
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var frame feedFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Warn("feed frame unparseable", "err", err)
			continue
		}
		switch frame.Type {
		case "candle":
			select {
			case c.candles <- frame.Candle:
			case <-ctx.Done():
				return nil
			}
		case "error":
			return fmt.Errorf("feed error: %s", frame.Error)
		}
	}
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
