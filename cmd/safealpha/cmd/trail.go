package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safealpha/engine/risk"
)

var trailCmd = &cobra.Command{
	Use:   "trail",
	Short: "Advance trailing stops on open positions",
	Long: `Run the trailing stop ladder over every open position: raise stops
as gains cross the ladder rungs, push raised stops to the broker, and
close journaled trades whose stop has been breached.`,
	Args: cobra.NoArgs,
	RunE: runTrail,
}

func init() {
	rootCmd.AddCommand(trailCmd)
}

func runTrail(cmd *cobra.Command, args []string) error {
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

	reports, err := e.AdvanceTrailingStops(ctx)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Println("No open positions.")
		return nil
	}

	for _, r := range reports {
		switch {
		case r.Err != nil:
			fmt.Printf("%-12s error: %v\n", r.Symbol, r.Err)
		case r.Update.Action == risk.StopRaise:
			fmt.Printf("%-12s stop raised to %.2f (gain %.1f%%)\n",
				r.Symbol, r.Update.NewStop, r.Update.GainPct*100)
		case r.Update.Action == risk.StopExit:
			fmt.Printf("%-12s stop breached, trade closed\n", r.Symbol)
		default:
			fmt.Printf("%-12s holding (gain %.1f%%)\n", r.Symbol, r.Update.GainPct*100)
		}
	}
	return nil
}
