package main

import (
	"github.com/spf13/cobra"

	"relkit/internal/workflow"
)

var workflowFormat string

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Inspect and repair the workflow guard state",
}

var workflowHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report whether an automation step is stuck",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := newContext()
		defer cancel()

		report := a.guard().Health(ctx)
		if err := printResponse(cmd, report, workflowFormat); err != nil {
			return err
		}
		if !report.Healthy {
			return &exitError{code: 1}
		}
		return nil
	},
}

var workflowRecoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Clear a leftover in-progress marker",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := newContext()
		defer cancel()

		res := a.guard().Recover(ctx)
		if err := printResponse(cmd, res, workflowFormat); err != nil {
			return err
		}
		if !res.Recovered {
			return &exitError{code: 1}
		}
		return nil
	},
}

var workflowReportCmd = &cobra.Command{
	Use:   "report OPERATION...",
	Short: "Classify operations as transparent or disruptive",
	Long: `Classify operation names the way the workflow guard does.

Examples:
  relkit workflow report release-detection analysis-execution
  relkit workflow report package-update git-commit`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(cmd, workflow.Report(args), workflowFormat)
	},
}

func init() {
	workflowCmd.PersistentFlags().StringVar(&workflowFormat, "format", "human", "Output format (human, json, yaml)")
	workflowCmd.AddCommand(workflowHealthCmd)
	workflowCmd.AddCommand(workflowRecoverCmd)
	workflowCmd.AddCommand(workflowReportCmd)
	rootCmd.AddCommand(workflowCmd)
}
