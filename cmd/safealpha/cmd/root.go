package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/safealpha/engine/broker"
	"github.com/safealpha/engine/broker/dhan"
	"github.com/safealpha/engine/broker/sim"
	"github.com/safealpha/engine/config"
	"github.com/safealpha/engine/engine"
	"github.com/safealpha/engine/history"
	"github.com/safealpha/engine/instruments"
	"github.com/safealpha/engine/journal"
	"github.com/safealpha/engine/metrics"
)

var rootCmd = &cobra.Command{
	Use:   "safealpha",
	Short: "Semi-automated EOD equity scanner and risk engine",
	Long: `Safealpha scans an NSE equity universe for EMA-aligned breakout
setups, sizes entries off a fixed risk budget, and supervises open
positions with portfolio gates, a trailing stop ladder, and a SELL/HOLD
advisory.

Scanning and monitoring never place orders; only the trade command
does, and every entry passes the portfolio gates first.`,
	SilenceUsage: true,
}

var (
	cfgPath   string
	scripFile string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&scripFile, "scrip-file", "", "local scrip-master CSV instead of the published feed")
}

// setup loads .env, config, and the logger. Every subcommand starts
// here.
func setup() (*config.Config, zerolog.Logger, error) {
	_ = godotenv.Load()

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.LoadFromFile(cfgPath)
		if err != nil {
			return nil, zerolog.Nop(), err
		}
		cfg = loaded
	}
	cfg.ResolveEnv()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	if cfg.Metrics.Addr != "" {
		metrics.Serve(cfg.Metrics.Addr)
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics endpoint started")
	}
	return cfg, log, nil
}

// buildEngine wires the full stack. The returned cleanup closes the
// ledger.
func buildEngine(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*engine.Engine, journal.Ledger, func(), error) {
	symbols, err := loadSymbols(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}

	fetcher := history.NewClient(cfg.History.BaseURL, os.Getenv("DHAN_ACCESS_TOKEN"),
		time.Duration(cfg.History.TimeoutSeconds)*time.Second, log)

	gateway, err := buildGateway(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}

	ledger, err := journal.Open(cfg.Journal.Driver, cfg.Journal.DSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open journal: %w", err)
	}

	e := engine.New(cfg, symbols, fetcher, gateway, ledger, log)
	return e, ledger, func() { _ = ledger.Close() }, nil
}

func loadSymbols(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*instruments.SymbolMap, error) {
	if scripFile != "" {
		return instruments.LoadFile(scripFile, log)
	}
	loader := instruments.NewLoader(nil, time.Duration(cfg.History.TimeoutSeconds)*time.Second, log)
	symbols, err := loader.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("scrip master unavailable, scan coverage degraded")
	}
	return symbols, nil
}

func buildGateway(cfg *config.Config, log zerolog.Logger) (broker.Gateway, error) {
	switch cfg.Broker.Kind {
	case "dhan":
		clientID := os.Getenv("DHAN_CLIENT_ID")
		token := os.Getenv("DHAN_ACCESS_TOKEN")
		if clientID == "" || token == "" {
			return nil, fmt.Errorf("broker.kind is dhan but DHAN_CLIENT_ID or DHAN_ACCESS_TOKEN is unset")
		}
		return dhan.NewClient(cfg.Broker.BaseURL, clientID, token,
			time.Duration(cfg.History.TimeoutSeconds)*time.Second, log), nil
	default:
		return sim.New(), nil
	}
}

// openLedger is for commands that only touch the journal.
func openLedger(cfg *config.Config) (journal.Ledger, func(), error) {
	ledger, err := journal.Open(cfg.Journal.Driver, cfg.Journal.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	return ledger, func() { _ = ledger.Close() }, nil
}
