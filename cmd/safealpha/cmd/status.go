package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/safealpha/engine/journal"
	"github.com/safealpha/engine/risk"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show portfolio state: positions, equity, drawdown, limits",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx := context.Background()

	e, ledger, cleanup, err := buildEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	active, err := ledger.ActiveTrades()
	if err != nil {
		return fmt.Errorf("load active trades: %w", err)
	}

	equity, failures := e.EstimateEquity(ctx, active)
	peak, err := ledger.PeakEquity()
	if err != nil {
		return fmt.Errorf("load peak equity: %w", err)
	}
	killSwitch, err := ledger.KillSwitch()
	if err != nil {
		return fmt.Errorf("load kill switch: %w", err)
	}
	week := journal.ISOWeekKey(time.Now())
	weekly, err := ledger.WeeklyCount(week)
	if err != nil {
		return fmt.Errorf("load weekly count: %w", err)
	}

	drawdown := risk.Drawdown(peak, equity)
	fmt.Printf("Equity:       %.2f %s", equity, cfg.Account.Currency)
	if failures > 0 {
		fmt.Printf("  (%d positions valued at entry)", failures)
	}
	fmt.Println()
	fmt.Printf("Peak equity:  %.2f\n", peak)
	fmt.Printf("Drawdown:     %.2f%% (limit %.2f%%)\n", drawdown*100, cfg.Risk.DrawdownLimit*100)
	fmt.Printf("Open trades:  %d / %d\n", len(active), cfg.Risk.MaxOpenTrades)
	fmt.Printf("Entries %s: %d / %d\n", week, weekly, cfg.Risk.MaxWeeklyTrades)
	if killSwitch {
		fmt.Println("Kill switch:  ON")
	}

	if len(active) > 0 {
		fmt.Printf("\n%-12s %-12s %10s %10s %12s %10s\n",
			"SYMBOL", "ENTERED", "ENTRY", "STOP", "SIZE", "SCORE")
		for _, t := range active {
			fmt.Printf("%-12s %-12s %10.2f %10.2f %12.2f %10.0f\n",
				t.Symbol, t.EntryDate, t.EntryPrice, t.StopPrice, t.PositionSize, t.Confidence)
		}
	}
	return nil
}
