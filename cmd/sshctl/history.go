package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/sshctl/internal/cli"
	"github.com/forest6511/sshctl/pkg/history"
)

// History flags
var (
	historyLimit  int
	historyPrune  string
	historyFormat string
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "Maximum number of events to show (0 for all)")
	historyCmd.Flags().StringVar(&historyPrune, "prune", "", "Delete events older than duration (e.g., 30d, 6m)")
	historyCmd.Flags().StringVarP(&historyFormat, "output", "o", cli.FormatTable, "Output format: "+strings.Join(cli.Formats(), ", "))
}

// historyCmd reads the local event log. It does not need the vault.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent logins and connections",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.HistoryEnabled {
			return fmt.Errorf("history is disabled (history_enabled: false)")
		}
		store, err := history.Open(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()

		if historyPrune != "" {
			olderThan, err := parseDuration(historyPrune)
			if err != nil {
				return fmt.Errorf("invalid prune duration: %w", err)
			}
			n, err := store.Prune(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Deleted %d events older than %s\n", n, historyPrune)
			return nil
		}

		events, err := store.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		return cli.WriteEvents(stdout, events, historyFormat)
	},
}
