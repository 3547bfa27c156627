package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/safealpha/engine/journal"
)

var exportCmd = &cobra.Command{
	Use:   "export <trades|equity>",
	Short: "Export journal data to CSV",
	Long: `Export the trade journal or the equity history to a CSV file.

Examples:
  safealpha export trades -o trades.csv
  safealpha export equity -o equity.csv`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"trades", "equity"},
	RunE:      runExport,
}

var exportPath string

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportPath, "out", "o", "", "output CSV path (required)")
	exportCmd.MarkFlagRequired("out")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	ledger, cleanup, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	switch args[0] {
	case "trades":
		err = journal.ExportTradesCSV(ledger, exportPath)
	case "equity":
		err = journal.ExportEquityCSV(ledger, exportPath)
	default:
		return fmt.Errorf("unknown export target %q", args[0])
	}
	if err != nil {
		return fmt.Errorf("export %s: %w", args[0], err)
	}

	fmt.Printf("Wrote %s\n", exportPath)
	return nil
}
