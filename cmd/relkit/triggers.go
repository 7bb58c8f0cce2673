package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"relkit/internal/analysis"
	"relkit/internal/hooks"
	"relkit/internal/integration"
	"relkit/internal/journal"
	"relkit/internal/triggers"
	"relkit/internal/workflow"
)

var (
	triggersFormat string
	triggerReason  string
	triggerSince   string
)

var triggersCmd = &cobra.Command{
	Use:   "triggers",
	Short: "Manage manual release triggers",
	Long: `Manual triggers are written to .relkit/triggers when an automated hook could
not complete its work. They can be listed, created by hand, or drained by a
watcher that runs the deferred analysis.`,
}

var triggersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending triggers, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		w := a.triggerWriter()
		stored, err := w.List()
		if err != nil {
			return err
		}
		return printResponse(cmd, &TriggerListCLI{Dir: w.Dir(), Triggers: stored}, triggersFormat)
	},
}

var triggersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Write a manual trigger for release analysis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		path, err := a.triggerWriter().Write(triggers.Trigger{
			Kind:      "manual",
			Operation: "release-analysis",
			Reason:    triggerReason,
			Source:    "cli",
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var triggersWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the analysis for each pending and new trigger",
	Long: `Process existing triggers, then watch the trigger directory until
interrupted. A trigger file is removed once its analysis succeeds; failed
triggers stay on disk for the next run.`,
	Args: cobra.NoArgs,
	RunE: runTriggersWatch,
}

func init() {
	triggersCmd.PersistentFlags().StringVar(&triggersFormat, "format", "human", "Output format (human, json, yaml)")
	triggersCreateCmd.Flags().StringVar(&triggerReason, "reason", "", "Why the analysis should run")
	triggersWatchCmd.Flags().StringVar(&triggerSince, "since", "", "Analyze changes after this tag or commit")

	triggersCmd.AddCommand(triggersListCmd)
	triggersCmd.AddCommand(triggersCreateCmd)
	triggersCmd.AddCommand(triggersWatchCmd)
	rootCmd.AddCommand(triggersCmd)
}

func runTriggersWatch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := newContext()
	defer cancel()

	integ := a.integration()
	guard := a.guard()
	rec := a.recorder()
	out := cmd.OutOrStdout()

	handler := func(ctx context.Context, s triggers.Stored) error {
		start := time.Now()
		outcome := workflow.ExecuteTransparently(ctx, guard, "analysis-execution",
			func(ctx context.Context) (*analysis.View, error) {
				return integ.Analyze(ctx, integration.QueryOptions{Since: triggerSince, SkipConfirmation: true})
			}, nil)

		run := &journal.HookRun{Hook: "trigger", Success: outcome.Err == nil, Duration: time.Since(start)}
		a.metrics.ObserveAnalysis(run.Duration, outcome.Err)
		if outcome.Err != nil {
			_ = integ.HandleError(outcome.Err)
			run.Error = outcome.Err.Error()
			fmt.Fprintf(out, "%s %s: %s\n", red("✗"), s.Trigger.ID, run.Error)
		} else {
			run.Output = hooks.QuickSummary(outcome.Result)
			fmt.Fprintf(out, "%s %s: %s\n", green("✓"), s.Trigger.ID, run.Output)
		}
		if err := rec.RecordHookRun(context.WithoutCancel(ctx), run); err != nil {
			a.logger.Warn("Failed to record trigger run", "error", err)
		}
		return outcome.Err
	}

	watcher := triggers.NewWatcher(a.triggerWriter(), handler, a.componentLogger("triggers"))
	fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", cyan(a.triggerWriter().Dir()))
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
