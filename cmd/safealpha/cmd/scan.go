package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safealpha/engine/scanner"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the universe for breakout setups (no orders)",
	Long: `Scan every universe symbol and print the qualifying candidates with
their confidence scores, plus a diagnostics summary explaining every
skip. No orders are placed.

Example:
  safealpha scan -f config.yaml`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
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

	res := e.RunScan(ctx)
	printScanResult(res)
	return nil
}

func printScanResult(res scanner.Result) {
	if res.RegimeChecked {
		regime := "BEARISH"
		if res.RegimeBullish {
			regime = "BULLISH"
		}
		fmt.Printf("Market regime: %s\n\n", regime)
	} else {
		fmt.Printf("Market regime: unavailable\n\n")
	}

	if len(res.Candidates) == 0 {
		fmt.Println("No candidates found.")
	} else {
		fmt.Printf("%-12s %-10s %10s %10s %6s %8s\n",
			"SYMBOL", "SECURITY", "PRICE", "STOP", "SCORE", "TIER")
		for _, c := range res.Candidates {
			fmt.Printf("%-12s %-10s %10.2f %10.2f %6d %8s\n",
				c.Symbol, c.SecurityID, c.Price, c.StopPrice, c.Confidence, c.Strength)
		}
	}

	fmt.Printf("\nDiagnostics (%d symbols):\n", len(res.Diagnostics))
	for reason, n := range scanner.ReasonCounts(res.Diagnostics) {
		fmt.Printf("  %-32s %d\n", reason, n)
	}
}
