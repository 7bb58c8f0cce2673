package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relkit/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Full())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
