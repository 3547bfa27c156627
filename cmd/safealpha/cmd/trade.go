package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safealpha/engine/risk"
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Scan and execute entries through the portfolio gates",
	Long: `Run a scan and execute every candidate the portfolio gates allow:
kill switch, system mode, drawdown limit, market regime, open-trade
and weekly-entry caps. Each entry places a market buy plus a
protective stop and is journaled.

Example:
  safealpha trade -f config.yaml --mode ACTIVE`,
	Args: cobra.NoArgs,
	RunE: runTrade,
}

var tradeMode string

func init() {
	rootCmd.AddCommand(tradeCmd)

	tradeCmd.Flags().StringVar(&tradeMode, "mode", string(risk.ModeActive),
		"system mode: ACTIVE, ENTRY_PAUSED or EMERGENCY_EXIT")
}

func runTrade(cmd *cobra.Command, args []string) error {
	mode, err := parseMode(tradeMode)
	if err != nil {
		return err
	}

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx := context.Background()

	e, _, cleanup, err := buildEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	rep, err := e.ExecuteScan(ctx, mode)
	if err != nil {
		return err
	}

	printScanResult(rep.Scan)
	fmt.Printf("\nDrawdown: %.2f%%", rep.Drawdown*100)
	if rep.Defensive {
		fmt.Print("  (defensive mode)")
	}
	fmt.Println()

	for _, t := range rep.Entered {
		fmt.Printf("ENTERED  %-12s entry %.2f stop %.2f size %.2f\n",
			t.Symbol, t.EntryPrice, t.StopPrice, t.PositionSize)
	}
	for _, s := range rep.Skipped {
		fmt.Printf("SKIPPED  %-12s %s\n", s.Symbol, s.Reason)
	}
	if len(rep.Entered) == 0 && len(rep.Skipped) == 0 {
		fmt.Println("Nothing to execute.")
	}
	return nil
}

func parseMode(s string) (risk.SystemMode, error) {
	switch risk.SystemMode(s) {
	case risk.ModeActive, risk.ModeEntryPaused, risk.ModeEmergencyExit:
		return risk.SystemMode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}
