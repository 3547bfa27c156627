package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var killswitchCmd = &cobra.Command{
	Use:   "killswitch [on|off]",
	Short: "Show or set the kill switch",
	Long: `The kill switch vetoes every new entry until cleared. It persists in
the journal, so it survives restarts and applies to every process
sharing the database. With no argument the current state is printed.

Examples:
  safealpha killswitch
  safealpha killswitch on
  safealpha killswitch off`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runKillswitch,
}

func init() {
	rootCmd.AddCommand(killswitchCmd)
}

func runKillswitch(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	ledger, cleanup, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if len(args) == 1 {
		if err := ledger.SetKillSwitch(args[0] == "on"); err != nil {
			return fmt.Errorf("set kill switch: %w", err)
		}
	}

	enabled, err := ledger.KillSwitch()
	if err != nil {
		return fmt.Errorf("read kill switch: %w", err)
	}
	if enabled {
		fmt.Println("Kill switch: ON (new entries blocked)")
	} else {
		fmt.Println("Kill switch: off")
	}
	return nil
}
