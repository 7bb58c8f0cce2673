package main

import (
	"github.com/spf13/cobra"

	"relkit/internal/version"
)

var (
	// verbosity counts -v flags: one for info, two for debug.
	verbosity int
	quiet     bool
	repoFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "relkit",
	Short: "relkit - release analysis integration",
	Long:  `relkit drives an external release-analysis tool, turns its JSON output into a
queryable result, and runs analysis from source-control hooks without ever
blocking the developer's workflow.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("relkit version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress all log output")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", "", "Repository root (default: detected from the working directory)")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}
