// Package config loads and validates the engine configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete engine configuration.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Scanner  ScannerConfig  `json:"scanner" yaml:"scanner"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	History  HistoryConfig  `json:"history" yaml:"history"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Broker   BrokerConfig   `json:"broker" yaml:"broker"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	LogLevel string         `json:"log_level" yaml:"log_level"`
}

// AccountConfig contains capital parameters.
type AccountConfig struct {
	BaseCapital float64 `json:"base_capital" yaml:"base_capital"`
	Currency    string  `json:"currency" yaml:"currency"`
}

// ScannerConfig contains the universe and every setup-rule threshold.
// Thresholds differ across deployments, so none are hardcoded at call
// sites.
type ScannerConfig struct {
	Universe     []string `json:"universe" yaml:"universe"`
	IndexSymbols []string `json:"index_symbols" yaml:"index_symbols"`

	MinCandles     int `json:"min_candles" yaml:"min_candles"`
	ScoreThreshold int `json:"score_threshold" yaml:"score_threshold"`
	StrictScore    int `json:"strict_score" yaml:"strict_score"`

	EMAShort      int `json:"ema_short" yaml:"ema_short"`
	EMAMid        int `json:"ema_mid" yaml:"ema_mid"`
	EMALong       int `json:"ema_long" yaml:"ema_long"`
	RegimeEMASpan int `json:"regime_ema_span" yaml:"regime_ema_span"`

	ATRPeriod      int `json:"atr_period" yaml:"atr_period"`
	VolumeWindow   int `json:"volume_window" yaml:"volume_window"`
	BreakoutWindow int `json:"breakout_window" yaml:"breakout_window"`
	SwingLowWindow int `json:"swing_low_window" yaml:"swing_low_window"`

	ATRCap                float64 `json:"atr_cap" yaml:"atr_cap"`
	VolumeMultiple        float64 `json:"volume_multiple" yaml:"volume_multiple"`
	VolumeMultipleRelaxed float64 `json:"volume_multiple_relaxed" yaml:"volume_multiple_relaxed"`
	BreakoutMargin        float64 `json:"breakout_margin" yaml:"breakout_margin"`
	StopATRMultiple       float64 `json:"stop_atr_multiple" yaml:"stop_atr_multiple"`

	RegimeBonus int `json:"regime_bonus" yaml:"regime_bonus"`
}

// RiskConfig contains portfolio-level risk limits. DrawdownLimit and
// DefensiveDrawdown are independent gates: the first vetoes new entries
// outright, the second shrinks sizing and concurrency until equity
// recovers.
type RiskConfig struct {
	RiskPercent     float64 `json:"risk_percent" yaml:"risk_percent"`
	MaxOpenTrades   int     `json:"max_open_trades" yaml:"max_open_trades"`
	MaxWeeklyTrades int     `json:"max_weekly_trades" yaml:"max_weekly_trades"`
	DrawdownLimit   float64 `json:"drawdown_limit" yaml:"drawdown_limit"`

	DefensiveDrawdown      float64 `json:"defensive_drawdown" yaml:"defensive_drawdown"`
	DefensiveRiskPercent   float64 `json:"defensive_risk_percent" yaml:"defensive_risk_percent"`
	DefensiveMaxOpenTrades int     `json:"defensive_max_open_trades" yaml:"defensive_max_open_trades"`

	MinQuantityFallback bool `json:"min_quantity_fallback" yaml:"min_quantity_fallback"`
}

// HistoryConfig controls the historical data fetch window.
type HistoryConfig struct {
	StartDate      string `json:"start_date" yaml:"start_date"`
	BaseURL        string `json:"base_url" yaml:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`

	// Minimum candles for the open-position risk advisory, which needs a
	// much shorter lookback than the entry scan.
	MinRiskScanCandles int `json:"min_risk_scan_candles" yaml:"min_risk_scan_candles"`
}

// JournalConfig selects the trade ledger backend.
type JournalConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `json:"dsn" yaml:"dsn"`       // file path for sqlite, URL for postgres
}

// BrokerConfig selects the order gateway.
type BrokerConfig struct {
	Kind        string  `json:"kind" yaml:"kind"` // "sim" or "dhan"
	BaseURL     string  `json:"base_url" yaml:"base_url"`
	TickSize    float64 `json:"tick_size" yaml:"tick_size"`
	ProductType string  `json:"product_type" yaml:"product_type"`
}

// MetricsConfig controls the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LoadFromFile loads configuration from a file (YAML or JSON based on
// content; YAML is tried first).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Account.BaseCapital <= 0 {
		return fmt.Errorf("account.base_capital must be positive")
	}
	if len(c.Scanner.Universe) == 0 {
		return fmt.Errorf("scanner.universe must not be empty")
	}
	if c.Scanner.MinCandles < c.Scanner.EMALong {
		return fmt.Errorf("scanner.min_candles %d below ema_long %d",
			c.Scanner.MinCandles, c.Scanner.EMALong)
	}
	if c.Scanner.ScoreThreshold <= 0 || c.Scanner.ScoreThreshold > 100 {
		return fmt.Errorf("scanner.score_threshold must be in (0, 100]")
	}
	if c.Scanner.StrictScore < c.Scanner.ScoreThreshold {
		return fmt.Errorf("scanner.strict_score must be >= score_threshold")
	}
	if c.Risk.RiskPercent <= 0 || c.Risk.RiskPercent > 1 {
		return fmt.Errorf("risk.risk_percent must be between 0 and 1")
	}
	if c.Risk.MaxOpenTrades <= 0 {
		return fmt.Errorf("risk.max_open_trades must be positive")
	}
	if c.Risk.DrawdownLimit <= 0 || c.Risk.DrawdownLimit >= 1 {
		return fmt.Errorf("risk.drawdown_limit must be between 0 and 1")
	}
	if c.Journal.Driver != "sqlite" && c.Journal.Driver != "postgres" {
		return fmt.Errorf("journal.driver must be 'sqlite' or 'postgres'")
	}
	if c.Journal.DSN == "" {
		return fmt.Errorf("journal.dsn is required")
	}
	if c.Broker.Kind != "sim" && c.Broker.Kind != "dhan" {
		return fmt.Errorf("broker.kind must be 'sim' or 'dhan'")
	}
	if c.Broker.TickSize <= 0 {
		return fmt.Errorf("broker.tick_size must be positive")
	}
	return nil
}

// ResolveEnv overlays secrets from the environment: DATABASE_URL takes
// precedence over the configured journal DSN, matching prior
// deployments of this system.
func (c *Config) ResolveEnv() {
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		c.Journal.DSN = url
		if strings.HasPrefix(strings.ToLower(url), "postgres://") ||
			strings.HasPrefix(strings.ToLower(url), "postgresql://") {
			c.Journal.Driver = "postgres"
		}
	}
}

// Default returns a configuration with the standard EOD thresholds.
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			BaseCapital: 10000,
			Currency:    "INR",
		},
		Scanner: ScannerConfig{
			Universe: []string{
				"RELIANCE", "TCS", "HDFCBANK", "INFY", "ICICIBANK", "SBIN",
				"ITC", "LT", "HCLTECH", "ONGC", "NTPC", "TATAMOTORS",
			},
			IndexSymbols:          []string{"NIFTY", "NIFTY50", "NIFTY 50"},
			MinCandles:            200,
			ScoreThreshold:        70,
			StrictScore:           85,
			EMAShort:              20,
			EMAMid:                50,
			EMALong:               200,
			RegimeEMASpan:         200,
			ATRPeriod:             14,
			VolumeWindow:          20,
			BreakoutWindow:        20,
			SwingLowWindow:        10,
			ATRCap:                0.03,
			VolumeMultiple:        1.5,
			VolumeMultipleRelaxed: 1.2,
			BreakoutMargin:        0.005,
			StopATRMultiple:       1.5,
			RegimeBonus:           20,
		},
		Risk: RiskConfig{
			RiskPercent:            0.01,
			MaxOpenTrades:          4,
			MaxWeeklyTrades:        5,
			DrawdownLimit:          0.08,
			DefensiveDrawdown:      0.05,
			DefensiveRiskPercent:   0.005,
			DefensiveMaxOpenTrades: 3,
			MinQuantityFallback:    true,
		},
		History: HistoryConfig{
			StartDate:          "2023-01-01",
			TimeoutSeconds:     30,
			MinRiskScanCandles: 60,
		},
		Journal: JournalConfig{
			Driver: "sqlite",
			DSN:    "./trades.db",
		},
		Broker: BrokerConfig{
			Kind:        "sim",
			TickSize:    0.05,
			ProductType: "CNC",
		},
		LogLevel: "info",
	}
}
