package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"relkit/internal/hooks"
)

var (
	hookFormat   string
	hookEvent    string
	hookMessage  string
	hookRevision string
	hookBranch   string
	hookFiles    []string
)

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Handle source-control hook events",
	Long: `Entry points for git hooks and file-organization tooling.

Events are read as JSON from --event (a path, or - for stdin). The commit
hook also accepts the event as flags. Hook failures never block the caller
unless fail_silently is disabled in .relkit/hooks.toml.`,
}

var hookCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Analyze a commit if it completes a task or release",
	Long: `Handle a post-commit event.

Examples:
  relkit hook commit --message "$(git log -1 --format=%B)" --revision "$(git rev-parse HEAD)" \
      --branch "$(git branch --show-current)" --files "$(git diff-tree --no-commit-id --name-only -r HEAD | paste -sd, -)"
  echo '{"message":"Complete task 3","revision":"abc123"}' | relkit hook commit --event -`,
	Args: cobra.NoArgs,
	RunE: runHookCommit,
}

var hookOrganizeCmd = &cobra.Command{
	Use:   "organize",
	Short: "Create a release trigger for organized completion documents",
	Args:  cobra.NoArgs,
	RunE:  runHookOrganize,
}

func init() {
	hookCmd.PersistentFlags().StringVar(&hookFormat, "format", "json", "Output format (json, human, yaml)")
	hookCmd.PersistentFlags().StringVar(&hookEvent, "event", "", "Event JSON file, or - for stdin")

	hookCommitCmd.Flags().StringVar(&hookMessage, "message", "", "Commit message")
	hookCommitCmd.Flags().StringVar(&hookRevision, "revision", "", "Commit revision")
	hookCommitCmd.Flags().StringVar(&hookBranch, "branch", "", "Current branch")
	hookCommitCmd.Flags().StringSliceVar(&hookFiles, "files", nil, "Changed files (comma-separated)")

	hookCmd.AddCommand(hookCommitCmd)
	hookCmd.AddCommand(hookOrganizeCmd)
	rootCmd.AddCommand(hookCmd)
}

func runHookCommit(cmd *cobra.Command, args []string) error {
	ev := hooks.CommitEvent{
		Message:      hookMessage,
		Revision:     hookRevision,
		Branch:       hookBranch,
		ChangedFiles: hookFiles,
		Timestamp:    time.Now().UTC(),
	}
	if hookEvent != "" {
		if err := readEvent(cmd.InOrStdin(), hookEvent, &ev); err != nil {
			return err
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	bridge, err := a.hookBridge()
	if err != nil {
		return err
	}
	ctx, cancel := newContext()
	defer cancel()

	return reportHook(cmd, bridge.OnCommit(ctx, ev))
}

func runHookOrganize(cmd *cobra.Command, args []string) error {
	if hookEvent == "" {
		return fmt.Errorf("--event is required")
	}
	var ev hooks.OrganizationEvent
	if err := readEvent(cmd.InOrStdin(), hookEvent, &ev); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	bridge, err := a.hookBridge()
	if err != nil {
		return err
	}
	ctx, cancel := newContext()
	defer cancel()

	return reportHook(cmd, bridge.OnOrganize(ctx, ev))
}

func reportHook(cmd *cobra.Command, res hooks.HookResult) error {
	if err := printResponse(cmd, res, hookFormat); err != nil {
		return err
	}
	if !res.Success {
		return &exitError{code: 1}
	}
	return nil
}

// readEvent decodes JSON from path, or from stdin when path is "-".
func readEvent(stdin io.Reader, path string, v any) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open event: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("failed to decode event: %w", err)
	}
	return nil
}
