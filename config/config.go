// Package config loads application configuration: infrastructure endpoints
// from environment variables and the trading parameter file from YAML.
package config

import (
	"os"
)

// Config holds infrastructure configuration loaded from environment variables.
type Config struct {
	// Feed connection
	FeedURL        string // candle feed WebSocket URL ("" = simulated candles)
	FeedUserID     string
	FeedTOTPSecret string // base32 secret for session TOTP codes

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	GatewayAddr   string // WebSocket server for the execution collaborator

	// Trading parameter file
	StrategyFile string

	// Execution mode passed through to NEW_POSITION events: EVAL or LIVE
	Mode string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		FeedURL:        getEnv("FEED_WS_URL", ""),
		FeedUserID:     getEnv("FEED_USER_ID", ""),
		FeedTOTPSecret: getEnv("FEED_TOTP_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/decisions.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8765"),

		StrategyFile: getEnv("STRATEGY_FILE", "config/strategy.yaml"),

		Mode: getEnv("TRADE_MODE", "EVAL"),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
