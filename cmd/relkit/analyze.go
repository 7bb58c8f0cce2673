package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"relkit/internal/analysis"
	"relkit/internal/integration"
)

var (
	analyzeFormat           string
	analyzeSince            string
	analyzeDryRun           bool
	analyzeSkipConfirmation bool
	analyzeCached           bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [-- extra tool args]",
	Short: "Run the release analysis",
	Long: `Run the external release-analysis tool and summarize its recommendation.

Transient failures and timeouts are retried with exponential backoff. Every
failure is reported with a category and recovery suggestions.

Examples:
  relkit analyze
  relkit analyze --since v1.2.0
  relkit analyze --dry-run --format json
  relkit analyze --cached`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "human", "Output format (human, json, yaml)")
	analyzeCmd.Flags().StringVar(&analyzeSince, "since", "", "Analyze changes after this tag or commit")
	analyzeCmd.Flags().BoolVar(&analyzeDryRun, "dry-run", false, "Preview the analysis without side effects")
	analyzeCmd.Flags().BoolVar(&analyzeSkipConfirmation, "skip-confirmation", true, "Pass --skip-confirmation to the tool")
	analyzeCmd.Flags().BoolVar(&analyzeCached, "cached", false, "Return the last cached result for these arguments instead of running the tool")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := newContext()
	defer cancel()

	q := integration.QueryOptions{
		Since:            analyzeSince,
		Args:             args,
		SkipConfirmation: analyzeSkipConfirmation,
		DryRun:           analyzeDryRun,
	}
	integ := a.integration()

	var view *analysis.View
	if analyzeCached {
		view, err = integ.Cached(ctx, q)
	} else {
		start := time.Now()
		view, err = integ.Analyze(ctx, q)
		a.metrics.ObserveAnalysis(time.Since(start), err)
	}
	if err != nil {
		_ = integ.HandleError(err)
		if perr := printResponse(cmd, newErrorResponse(err), analyzeFormat); perr != nil {
			return perr
		}
		return &exitError{code: 1}
	}
	return printResponse(cmd, newAnalyzeResponse(view, analyzeCached), analyzeFormat)
}

func printResponse(cmd *cobra.Command, resp any, format string) error {
	out, err := FormatResponse(resp, OutputFormat(format))
	if err != nil {
		return fmt.Errorf("error formatting output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
