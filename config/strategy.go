package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StrategyFile is the root of the YAML trading parameter file. It is consumed
// by the core, not owned: the file ships alongside the deployment.
type StrategyFile struct {
	Account      AccountConfig               `yaml:"account"`
	Instruments  map[string]InstrumentConfig `yaml:"instruments"`
	Continuation ContinuationConfig          `yaml:"continuation"`
	GapInversion GapInversionConfig          `yaml:"gap_inversion"`
	Arbiter      ArbiterConfig               `yaml:"arbiter"`
	// RestrictedEvents lists YYYY-MM-DD dates (FOMC/NFP/CPI) on which new
	// signals are rejected.
	RestrictedEvents []string           `yaml:"restricted_events"`
	Notification     NotificationConfig `yaml:"notification"`
}

// AccountConfig holds account-level risk parameters.
type AccountConfig struct {
	Size            float64 `yaml:"size"`                   // equity in USD
	MaxRiskUSD      float64 `yaml:"max_risk_usd_per_trade"` // per-trade budget
	DailyLossLimit  float64 `yaml:"daily_loss_limit"`
	SessionResetUTC string  `yaml:"session_reset_utc"` // "HH:MM" daily reset
}

// InstrumentConfig holds per-contract tick specifications.
type InstrumentConfig struct {
	TickSize  float64 `yaml:"tick_size"`
	TickValue float64 `yaml:"tick_value"`
}

// ContinuationConfig tunes the trend-continuation (ICC) detector.
type ContinuationConfig struct {
	Enabled          bool    `yaml:"enabled"`
	MinRMultiple     float64 `yaml:"min_r_multiple"`     // stricter than global
	DisplacementATR  float64 `yaml:"displacement_atr"`   // body >= k*ATR
	SwingLookback    int     `yaml:"swing_lookback"`     // prior-swing break window
	ZoneLow          float64 `yaml:"zone_low"`           // value zone 0.38
	ZoneHigh         float64 `yaml:"zone_high"`          // value zone 0.62
	MaxCorrectionAge int     `yaml:"max_correction_age"` // candles before invalidation
	CVDFlatSlope     float64 `yaml:"cvd_flat_slope"`     // |slope| below = flat
	StopBufferATR    float64 `yaml:"stop_buffer_atr"`    // stop = extreme +/- k*ATR
	RTarget          float64 `yaml:"r_target"`           // take-profit multiple
}

// GapInversionConfig tunes the gap-inversion detector.
type GapInversionConfig struct {
	Enabled         bool    `yaml:"enabled"`
	MinRMultiple    float64 `yaml:"min_r_multiple"`
	MinGapTicks     int     `yaml:"min_gap_ticks"`
	MaxGapAge       int     `yaml:"max_gap_age"` // candles before a gap expires
	SwingLookback   int     `yaml:"swing_lookback"`
	StopBufferTicks int     `yaml:"stop_buffer_ticks"`
	RequireProbe    bool    `yaml:"require_probe"` // opposite-probe filter
}

// ArbiterConfig tunes cross-strategy conflict resolution.
type ArbiterConfig struct {
	AllowMerging       float64Flag `yaml:"allow_merging"`
	MaxMergeMultiplier float64     `yaml:"max_merge_multiplier"`
	// ContinuationHours and ReversalWindows are "HH:MM-HH:MM" ranges in the
	// exchange timezone (UTC offset below).
	ContinuationHours []string `yaml:"continuation_hours"`
	ReversalWindows   []string `yaml:"reversal_windows"`
	TZOffsetMinutes   int      `yaml:"tz_offset_minutes"` // e.g. -360 for CT
	// CloseOnPriorityConflict force-closes an open position when a
	// higher-priority opposite signal arrives. Default false: the open
	// position stands and the incoming signal is rejected.
	CloseOnPriorityConflict bool `yaml:"close_on_priority_conflict"`
	// TrailSettings drive stop movement after TP fills.
	TrailATRMultiplier   float64 `yaml:"trail_atr_multiplier"`
	BreakevenBufferTicks int     `yaml:"breakeven_buffer_ticks"`
	MinTrailTicks        int     `yaml:"min_trail_ticks"`
}

// float64Flag is a bool that YAML may also express as 0/1.
type float64Flag bool

func (f *float64Flag) UnmarshalYAML(value *yaml.Node) error {
	var b bool
	if err := value.Decode(&b); err == nil {
		*f = float64Flag(b)
		return nil
	}
	var n float64
	if err := value.Decode(&n); err != nil {
		return err
	}
	*f = n != 0
	return nil
}

// Bool returns the flag as a plain bool.
func (f float64Flag) Bool() bool { return bool(f) }

// NotificationConfig configures optional signal alerts.
type NotificationConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
	WebhookURL     string `yaml:"webhook_url"`
}

// LoadStrategy reads and validates the YAML trading parameter file.
func LoadStrategy(path string) (*StrategyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy file: %w", err)
	}
	sf := DefaultStrategy()
	if err := yaml.Unmarshal(data, sf); err != nil {
		return nil, fmt.Errorf("parse strategy file: %w", err)
	}
	if err := sf.Validate(); err != nil {
		return nil, err
	}
	return sf, nil
}

// DefaultStrategy returns the built-in parameter set: an E-Mini whitelist and
// the documented defaults for both detectors.
func DefaultStrategy() *StrategyFile {
	return &StrategyFile{
		Account: AccountConfig{
			Size:            150000,
			MaxRiskUSD:      750,
			DailyLossLimit:  1500,
			SessionResetUTC: "22:00",
		},
		Instruments: map[string]InstrumentConfig{
			"NQ": {TickSize: 0.25, TickValue: 5.0},
			"ES": {TickSize: 0.25, TickValue: 12.5},
			"GC": {TickSize: 0.10, TickValue: 10.0},
			"CL": {TickSize: 0.01, TickValue: 10.0},
		},
		Continuation: ContinuationConfig{
			Enabled:          true,
			MinRMultiple:     2.0,
			DisplacementATR:  1.5,
			SwingLookback:    10,
			ZoneLow:          0.38,
			ZoneHigh:         0.62,
			MaxCorrectionAge: 12,
			CVDFlatSlope:     50,
			StopBufferATR:    0.25,
			RTarget:          3.0,
		},
		GapInversion: GapInversionConfig{
			Enabled:         true,
			MinRMultiple:    1.5,
			MinGapTicks:     10,
			MaxGapAge:       100,
			SwingLookback:   20,
			StopBufferTicks: 5,
			RequireProbe:    true,
		},
		Arbiter: ArbiterConfig{
			AllowMerging:         true,
			MaxMergeMultiplier:   1.5,
			ContinuationHours:    []string{"09:30-15:30"},
			ReversalWindows:      []string{"08:30-09:30"},
			TZOffsetMinutes:      -360,
			TrailATRMultiplier:   0.75,
			BreakevenBufferTicks: 2,
			MinTrailTicks:        2,
		},
	}
}

// Validate checks the parameter file for obvious misconfiguration.
func (sf *StrategyFile) Validate() error {
	if sf.Account.Size <= 0 {
		return fmt.Errorf("account.size must be positive, got %v", sf.Account.Size)
	}
	if sf.Account.MaxRiskUSD <= 0 {
		return fmt.Errorf("account.max_risk_usd_per_trade must be positive")
	}
	if len(sf.Instruments) == 0 {
		return fmt.Errorf("at least one instrument must be configured")
	}
	for sym, spec := range sf.Instruments {
		if spec.TickSize <= 0 || spec.TickValue <= 0 {
			return fmt.Errorf("instrument %s: tick_size and tick_value must be positive", sym)
		}
	}
	if sf.Continuation.ZoneLow <= 0 || sf.Continuation.ZoneHigh >= 1 ||
		sf.Continuation.ZoneLow >= sf.Continuation.ZoneHigh {
		return fmt.Errorf("continuation value zone must satisfy 0 < low < high < 1")
	}
	if sf.Arbiter.MaxMergeMultiplier < 1 {
		return fmt.Errorf("arbiter.max_merge_multiplier must be >= 1")
	}
	return nil
}

// Symbols returns the configured instrument symbols.
func (sf *StrategyFile) Symbols() []string {
	out := make([]string, 0, len(sf.Instruments))
	for sym := range sf.Instruments {
		out = append(out, sym)
	}
	return out
}
