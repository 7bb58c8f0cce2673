package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	journalFormat    string
	journalLimit     int
	journalOlderThan time.Duration
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect recorded hook runs and the analysis cache",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent hook runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		store := a.openJournal()
		if store == nil {
			return fmt.Errorf("journal is disabled or unavailable")
		}
		ctx, cancel := newContext()
		defer cancel()

		runs, err := store.ListHookRuns(ctx, journalLimit)
		if err != nil {
			return err
		}
		return printResponse(cmd, &JournalListCLI{Runs: runs}, journalFormat)
	},
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove hook runs and cached results past retention",
	Long: `Remove journal entries older than --older-than, or older than
journal.retentionDays from the configuration when the flag is not given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		store := a.openJournal()
		if store == nil {
			return fmt.Errorf("journal is disabled or unavailable")
		}
		ctx, cancel := newContext()
		defer cancel()

		retention := a.cfg.Retention()
		if journalOlderThan > 0 {
			retention = journalOlderThan
		}
		res, err := store.Prune(ctx, retention)
		if err != nil {
			return err
		}
		return printResponse(cmd, res, journalFormat)
	},
}

func init() {
	journalCmd.PersistentFlags().StringVar(&journalFormat, "format", "human", "Output format (human, json, yaml)")
	journalListCmd.Flags().IntVar(&journalLimit, "limit", 20, "Maximum runs to show (0 for all)")
	journalPruneCmd.Flags().DurationVar(&journalOlderThan, "older-than", 0, "Retention override, e.g. 72h")

	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalPruneCmd)
	rootCmd.AddCommand(journalCmd)
}
