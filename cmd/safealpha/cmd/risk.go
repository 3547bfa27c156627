package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Review open positions and print SELL/HOLD advice",
	Long: `Review every open position against its stop and trend structure and
print a SELL or HOLD verdict with the reason. Positions that cannot be
reviewed (missing data, short history) are flagged SELL. Advisory
only; no orders are placed.`,
	Args: cobra.NoArgs,
	RunE: runRisk,
}

func init() {
	rootCmd.AddCommand(riskCmd)
}

func runRisk(cmd *cobra.Command, args []string) error {
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

	advice, err := e.EvaluateRisk(ctx)
	if err != nil {
		return err
	}
	if len(advice) == 0 {
		fmt.Println("No open positions.")
		return nil
	}

	fmt.Printf("%-6s %-12s %10s %10s %10s %8s  %s\n",
		"ACTION", "SYMBOL", "ENTRY", "PRICE", "STOP", "PNL%", "REASON")
	for _, a := range advice {
		price, pnl := "n/a", "n/a"
		if a.CurrentPrice != nil {
			price = fmt.Sprintf("%.2f", *a.CurrentPrice)
		}
		if a.PnLPct != nil {
			pnl = fmt.Sprintf("%.2f", *a.PnLPct*100)
		}
		fmt.Printf("%-6s %-12s %10.2f %10s %10.2f %8s  %s\n",
			a.Verdict, a.Symbol, a.EntryPrice, price, a.StopPrice, pnl, a.Reason)
	}
	return nil
}
