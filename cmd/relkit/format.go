package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"relkit/internal/analysis"
	"relkit/internal/errors"
	"relkit/internal/hooks"
	"relkit/internal/journal"
	"relkit/internal/triggers"
	"relkit/internal/workflow"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
	FormatYAML  OutputFormat = "yaml"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp any, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func formatJSON(resp any) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatYAML(resp any) (string, error) {
	data, err := yaml.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func formatHuman(resp any) (string, error) {
	switch v := resp.(type) {
	case *AnalyzeResponseCLI:
		return formatAnalyzeHuman(v), nil
	case *ErrorResponseCLI:
		return formatErrorHuman(v), nil
	case *ProbeResponseCLI:
		return formatProbeHuman(v), nil
	case hooks.HookResult:
		return formatHookHuman(v), nil
	case workflow.HealthReport:
		return formatHealthHuman(v), nil
	case workflow.RecoveryResult:
		return formatRecoveryHuman(v), nil
	case workflow.TransparencyReport:
		return formatReportHuman(v), nil
	case *TriggerListCLI:
		return formatTriggersHuman(v), nil
	case *JournalListCLI:
		return formatJournalHuman(v), nil
	case journal.PruneResult:
		return fmt.Sprintf("Pruned %d hook run(s) and %d cache entr%s", v.HookRuns, v.CacheEntries, plural(v.CacheEntries, "y", "ies")), nil
	default:
		return formatJSON(resp)
	}
}

// AnalyzeResponseCLI is the output of analyze.
type AnalyzeResponseCLI struct {
	Summary   analysis.Summary         `json:"summary" yaml:"summary"`
	Rationale string                   `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	Cached    bool                     `json:"cached" yaml:"cached"`
	Result    *analysis.AnalysisResult `json:"result" yaml:"result"`
}

func newAnalyzeResponse(v *analysis.View, cached bool) *AnalyzeResponseCLI {
	return &AnalyzeResponseCLI{
		Summary:   v.Summary(),
		Rationale: v.VersionRationale(),
		Cached:    cached,
		Result:    v.Raw(),
	}
}

func bumpColor(b analysis.BumpType) string {
	switch b {
	case analysis.BumpMajor:
		return red(string(b))
	case analysis.BumpMinor:
		return yellow(string(b))
	case analysis.BumpPatch:
		return green(string(b))
	default:
		return string(b)
	}
}

func formatAnalyzeHuman(r *AnalyzeResponseCLI) string {
	s := r.Summary
	var b strings.Builder

	title := "Release Analysis Summary"
	if r.Cached {
		title += " (cached)"
	}
	b.WriteString(bold(title) + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")

	fmt.Fprintf(&b, "Version: %s -> %s (%s)\n", s.Version.Current, s.Version.Recommended, bumpColor(s.Version.BumpType))
	if r.Rationale != "" {
		fmt.Fprintf(&b, "  %s\n", r.Rationale)
	}
	b.WriteString("\nChanges:\n")
	fmt.Fprintf(&b, "  Breaking:     %d\n", s.Changes.Breaking)
	fmt.Fprintf(&b, "  Features:     %d\n", s.Changes.Features)
	fmt.Fprintf(&b, "  Bug fixes:    %d\n", s.Changes.Fixes)
	fmt.Fprintf(&b, "  Improvements: %d\n", s.Changes.Improvements)
	fmt.Fprintf(&b, "  Total:        %d\n", s.Changes.Total)

	if r.Result != nil {
		for _, bc := range r.Result.Changes.BreakingChanges {
			fmt.Fprintf(&b, "  %s %s [%s]\n", red("!"), bc.Title, bc.Severity)
		}
	}

	fmt.Fprintf(&b, "\nConfidence: %.1f%% (%s)\n", s.Confidence.Overall*100, s.Confidence.Level)
	fmt.Fprintf(&b, "Documents analyzed: %d\n", s.Metadata.DocumentsAnalyzed)
	fmt.Fprintf(&b, "Duration: %dms", s.Metadata.DurationMs)
	return b.String()
}

// ErrorResponseCLI is the output of a failed analysis.
type ErrorResponseCLI struct {
	Category    errors.Category `json:"category" yaml:"category"`
	Message     string          `json:"message" yaml:"message"`
	UserMessage string          `json:"userMessage" yaml:"userMessage"`
	Retryable   bool            `json:"retryable" yaml:"retryable"`
	Suggestions []string        `json:"recoverySuggestions" yaml:"recoverySuggestions"`
	ExitCode    *int            `json:"exitCode,omitempty" yaml:"exitCode,omitempty"`
	Stderr      string          `json:"stderr,omitempty" yaml:"stderr,omitempty"`
}

func newErrorResponse(err error) *ErrorResponseCLI {
	ce, ok := errors.As(err)
	if !ok {
		ce = errors.New(errors.Unknown, err.Error(), err, nil, nil)
	}
	resp := &ErrorResponseCLI{
		Category:    ce.Category,
		Message:     ce.Message,
		UserMessage: ce.UserMessage(),
		Retryable:   ce.IsRetryable(),
		Suggestions: ce.Suggestions(),
	}
	if ce.Execution != nil {
		resp.ExitCode = ce.Execution.ExitCode
		resp.Stderr = strings.TrimSpace(ce.Execution.Stderr)
	}
	return resp
}

func formatErrorHuman(r *ErrorResponseCLI) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", red("✗"), r.UserMessage)
	fmt.Fprintf(&b, "  %s (%s)\n", r.Message, r.Category)
	if r.ExitCode != nil {
		fmt.Fprintf(&b, "  exit code: %d\n", *r.ExitCode)
	}
	if len(r.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, s := range r.Suggestions {
			fmt.Fprintf(&b, "  - %s\n", s)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ProbeResponseCLI is the output of probe.
type ProbeResponseCLI struct {
	Command   string `json:"command" yaml:"command"`
	Available bool   `json:"available" yaml:"available"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
}

func formatProbeHuman(r *ProbeResponseCLI) string {
	if !r.Available {
		return fmt.Sprintf("%s %s is not available", red("✗"), r.Command)
	}
	if r.Version == "" {
		return fmt.Sprintf("%s %s is available (version unknown)", green("✓"), r.Command)
	}
	return fmt.Sprintf("%s %s is available (version %s)", green("✓"), r.Command, r.Version)
}

func formatHookHuman(r hooks.HookResult) string {
	mark := green("✓")
	if !r.Success {
		mark = red("✗")
	} else if r.Error != "" {
		mark = yellow("!")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s hook (%dms)", mark, r.HookName, r.ExecutionTime.Milliseconds())
	if r.Output != "" {
		fmt.Fprintf(&b, "\n  %s", r.Output)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "\n  error: %s", r.Error)
	}
	return b.String()
}

func formatHealthHuman(r workflow.HealthReport) string {
	var b strings.Builder
	if r.Healthy {
		fmt.Fprintf(&b, "%s Workflow is healthy\n", green("✓"))
	} else {
		fmt.Fprintf(&b, "%s Workflow needs attention\n", red("✗"))
	}
	fmt.Fprintf(&b, "  State file: %s\n", yesNo(r.StateFileExists))
	fmt.Fprintf(&b, "  Preservation log: %s\n", yesNo(r.LogFileExists))
	if st := r.CurrentState; st != nil {
		fmt.Fprintf(&b, "  In progress: %s (since %s)\n", st.Operation, st.StartTime.Format(time.RFC3339))
	}
	for _, issue := range r.Issues {
		fmt.Fprintf(&b, "  %s %s\n", yellow("!"), issue)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRecoveryHuman(r workflow.RecoveryResult) string {
	if r.Recovered {
		return fmt.Sprintf("%s %s", green("✓"), r.Message)
	}
	return fmt.Sprintf("%s %s", red("✗"), r.Message)
}

func formatReportHuman(r workflow.TransparencyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Operations: %d (%d transparent, %d disruptive)\n",
		r.OperationsExecuted, r.TransparentOperations, r.DisruptiveOperations)
	for _, name := range r.Disruptive {
		fmt.Fprintf(&b, "  %s %s\n", yellow("!"), name)
	}
	if r.WorkflowPreserved {
		fmt.Fprintf(&b, "%s Workflow preserved", green("✓"))
	} else {
		fmt.Fprintf(&b, "%s Workflow may be disrupted", red("✗"))
	}
	return b.String()
}

// TriggerListCLI is the output of triggers list.
type TriggerListCLI struct {
	Dir      string            `json:"dir" yaml:"dir"`
	Triggers []triggers.Stored `json:"triggers" yaml:"triggers"`
}

func formatTriggersHuman(r *TriggerListCLI) string {
	if len(r.Triggers) == 0 {
		return fmt.Sprintf("No pending triggers in %s", r.Dir)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d pending trigger(s) in %s\n", len(r.Triggers), r.Dir)
	for _, s := range r.Triggers {
		t := s.Trigger
		fmt.Fprintf(&b, "  %s %s %s", cyan(t.CreatedAt.Format(time.RFC3339)), t.Kind, t.Operation)
		if t.Reason != "" {
			fmt.Fprintf(&b, " - %s", t.Reason)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// JournalListCLI is the output of journal list.
type JournalListCLI struct {
	Runs []journal.HookRun `json:"runs" yaml:"runs"`
}

func formatJournalHuman(r *JournalListCLI) string {
	if len(r.Runs) == 0 {
		return "No hook runs recorded"
	}
	var b strings.Builder
	for _, run := range r.Runs {
		mark := green("✓")
		if !run.Success {
			mark = red("✗")
		}
		fmt.Fprintf(&b, "%s %s %-8s %6dms", mark, run.CreatedAt.Local().Format("2006-01-02 15:04:05"), run.Hook, run.Duration.Milliseconds())
		if run.FallbackUsed {
			b.WriteString(" " + yellow("fallback"))
		}
		if run.Error != "" {
			fmt.Fprintf(&b, " %s", run.Error)
		} else if run.Output != "" {
			fmt.Fprintf(&b, " %s", run.Output)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func yesNo(b bool) string {
	if b {
		return "present"
	}
	return "absent"
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
