package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/BioHazard786/landrop/internal/config"
	"github.com/BioHazard786/landrop/internal/history"
	"github.com/BioHazard786/landrop/internal/ui"
)

var flagHistoryLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently sent and received files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(config.Options{})
		if err != nil {
			return err
		}

		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()

		records, err := store.Recent(flagHistoryLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.HistoryView(records))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&flagHistoryLimit, "limit", "n", 20, "Number of records to show (0 for all)")
}
