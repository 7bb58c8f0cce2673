package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path"
	"slices"
	"strings"
	"time"
	"unicode"

	"relkit/internal/analysis"
	"relkit/internal/integration"
	"relkit/internal/journal"
	"relkit/internal/paths"
	"relkit/internal/slogutil"
	"relkit/internal/triggers"
	"relkit/internal/workflow"
)

// Hook and operation names.
const (
	CommitHook       = "commit"
	OrganizeHook     = "organize"
	opDetection      = "release-detection"
	opAnalysis       = "analysis-execution"
	opTriggerCreate  = "trigger-creation"
	completionSuffix = "-completion.md"
)

// Analyzer runs release analyses. *integration.Integration satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, q integration.QueryOptions) (*analysis.View, error)
	AnalyzeSince(ctx context.Context, since string, q integration.QueryOptions) (*analysis.View, error)
}

// Recorder persists hook runs. *journal.Store satisfies it.
type Recorder interface {
	RecordHookRun(ctx context.Context, run *journal.HookRun) error
}

// Deps are the collaborators of a Bridge. Recorder and Triggers are
// optional.
type Deps struct {
	Analyzer Analyzer
	Guard    *workflow.Guard
	Triggers *triggers.Writer
	Recorder Recorder
	Logger   *slog.Logger
}

// Bridge handles hook events.
type Bridge struct {
	cfg      Config
	analyzer Analyzer
	guard    *workflow.Guard
	triggers *triggers.Writer
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Bridge.
func New(cfg Config, deps Deps) *Bridge {
	guard := deps.Guard
	if guard == nil {
		guard = workflow.New(workflow.Options{Triggers: deps.Triggers, Logger: deps.Logger})
	}
	return &Bridge{
		cfg:      cfg,
		analyzer: deps.Analyzer,
		guard:    guard,
		triggers: deps.Triggers,
		recorder: deps.Recorder,
		logger:   slogutil.OrDiscard(deps.Logger),
		now:      time.Now,
	}
}

// Decision explains whether a commit should be analyzed.
type Decision struct {
	Analyze bool   `json:"analyze"`
	Reason  string `json:"reason"`
}

// ShouldAnalyzeCommit decides from the branch, the commit message, and the
// changed paths whether a commit warrants a release analysis.
func (b *Bridge) ShouldAnalyzeCommit(ev CommitEvent) Decision {
	if !b.cfg.Enabled {
		return Decision{Reason: "hooks are disabled"}
	}
	if ev.Branch != "" && slices.Contains(b.cfg.SkipBranches, ev.Branch) {
		return Decision{Reason: fmt.Sprintf("branch %s is skipped", ev.Branch)}
	}
	for _, f := range ev.ChangedFiles {
		if b.isCompletionDocument(f) {
			return Decision{Analyze: true, Reason: fmt.Sprintf("completion document changed: %s", f)}
		}
	}
	if marker, ok := b.messageMarker(ev.Message); ok {
		return Decision{Analyze: true, Reason: fmt.Sprintf("commit message mentions %q", marker)}
	}
	return Decision{Reason: "no completion documents or release markers"}
}

func (b *Bridge) messageMarker(message string) (string, bool) {
	words := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, marker := range b.cfg.CommitMarkers {
		if slices.Contains(words, strings.ToLower(marker)) {
			return marker, true
		}
	}
	return "", false
}

// isCompletionDocument reports whether p is a markdown completion document
// under one of the configured trigger paths.
func (b *Bridge) isCompletionDocument(p string) bool {
	p = paths.NormalizePath(p)
	if !strings.HasSuffix(p, ".md") {
		return false
	}
	under := len(b.cfg.TriggerPaths) == 0
	for _, tp := range b.cfg.TriggerPaths {
		tp = strings.TrimSuffix(paths.NormalizePath(tp), "/")
		if strings.HasPrefix(p, tp+"/") {
			under = true
			break
		}
	}
	if !under {
		return false
	}
	return strings.HasSuffix(p, completionSuffix) || path.Base(path.Dir(p)) == "completion"
}

// OnCommit runs detection and, when warranted, analysis for a commit.
func (b *Bridge) OnCommit(ctx context.Context, ev CommitEvent) HookResult {
	start := b.now()
	res := HookResult{HookName: CommitHook}
	var fallbackUsed bool

	detect := b.guard.Preserve(ctx, opDetection, func(context.Context) (any, error) {
		return b.ShouldAnalyzeCommit(ev), nil
	})
	decision, decided := detect.Result.(Decision)

	switch {
	case !decided:
		fallbackUsed = detect.FallbackUsed
		res.Success = detect.Preserved
		res.Output = fallbackMessage(detect.Result)
		res.Error = detect.Error
	case !decision.Analyze:
		res.Success = true
		res.Output = "Skipped release analysis: " + decision.Reason
	default:
		b.logger.Info("Running release analysis from commit hook", "revision", ev.Revision, "reason", decision.Reason)
		res, fallbackUsed = b.analyzeCommit(ctx, ev, res)
	}

	return b.finish(ctx, start, res, fallbackUsed)
}

func (b *Bridge) analyzeCommit(ctx context.Context, ev CommitEvent, res HookResult) (HookResult, bool) {
	if b.analyzer == nil {
		res.Error = "no analyzer configured"
		return res, false
	}
	if t := b.cfg.Timeout(); t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	q := integration.QueryOptions{SkipConfirmation: true}
	if b.cfg.QuickMode {
		q.Args = append(q.Args, "--quick")
	}

	var analyzeErr error
	pr := b.guard.Preserve(ctx, opAnalysis, func(ctx context.Context) (any, error) {
		var view *analysis.View
		if ev.Revision != "" {
			view, analyzeErr = b.analyzer.AnalyzeSince(ctx, ev.Revision+"^", q)
		} else {
			view, analyzeErr = b.analyzer.Analyze(ctx, q)
		}
		if analyzeErr != nil {
			return nil, analyzeErr
		}
		return view, nil
	})

	res.Success = pr.Preserved
	if view, ok := pr.Result.(*analysis.View); ok {
		res.Output = QuickSummary(view)
		return res, false
	}
	res.Output = fallbackMessage(pr.Result)
	if analyzeErr != nil {
		res.Error = analyzeErr.Error()
	} else {
		res.Error = pr.Error
	}
	return res, pr.FallbackUsed
}

// OnOrganize writes a release trigger when organized files include
// completion documents.
func (b *Bridge) OnOrganize(ctx context.Context, ev OrganizationEvent) HookResult {
	start := b.now()
	res := HookResult{HookName: OrganizeHook}

	if !b.cfg.Enabled {
		res.Success = true
		res.Output = "Skipped: hooks are disabled"
		return b.finish(ctx, start, res, false)
	}

	var docs []string
	for _, e := range ev.Entries {
		if b.isCompletionDocument(e.NewPath) {
			docs = append(docs, paths.NormalizePath(e.NewPath))
		}
	}
	if len(docs) == 0 {
		res.Success = true
		res.Output = "No completion documents organized"
		return b.finish(ctx, start, res, false)
	}

	pr := b.guard.Preserve(ctx, opTriggerCreate, func(context.Context) (any, error) {
		if b.triggers == nil {
			return nil, fmt.Errorf("no trigger directory configured")
		}
		written, err := b.triggers.Write(triggers.Trigger{
			Kind:      "organization",
			Operation: "release-analysis",
			Reason:    ev.Trigger,
			Source:    OrganizeHook,
			Paths:     docs,
			CreatedAt: b.now(),
		})
		if err != nil {
			return nil, err
		}
		return written, nil
	})

	res.Success = pr.Preserved
	res.Error = pr.Error
	if p, ok := pr.Result.(string); ok {
		res.Output = fmt.Sprintf("Release trigger written for %d completion document(s): %s", len(docs), p)
	} else {
		res.Output = fallbackMessage(pr.Result)
	}
	return b.finish(ctx, start, res, pr.FallbackUsed)
}

func (b *Bridge) finish(ctx context.Context, start time.Time, res HookResult, fallbackUsed bool) HookResult {
	res.ExecutionTime = b.now().Sub(start)
	if !res.Success && b.cfg.FailSilently {
		b.logger.Warn("Hook failed; reporting success to keep the workflow moving",
			"hook", res.HookName, "error", res.Error)
		res.Success = true
	}

	if b.recorder != nil {
		run := &journal.HookRun{
			Hook:         res.HookName,
			Success:      res.Success,
			FallbackUsed: fallbackUsed,
			Duration:     res.ExecutionTime,
			Output:       res.Output,
			Error:        res.Error,
		}
		if err := b.recorder.RecordHookRun(context.WithoutCancel(ctx), run); err != nil {
			b.logger.Warn("Failed to record hook run", "hook", res.HookName, "error", err.Error())
		}
	}
	return res
}

func fallbackMessage(result any) string {
	if fr, ok := result.(workflow.FallbackResult); ok {
		return fr.Message
	}
	return ""
}

// QuickSummary renders a one-line summary for agents and hook output.
func QuickSummary(v *analysis.View) string {
	head := "no version bump recommended"
	if v.ShouldBumpVersion() {
		head = fmt.Sprintf("%s bump recommended", v.BumpType())
	}
	return fmt.Sprintf("%s: %d breaking, %s, %s, %s (confidence %d%%)",
		head,
		len(v.BreakingChanges()),
		count(len(v.Features()), "feature", "features"),
		count(len(v.BugFixes()), "fix", "fixes"),
		count(len(v.Improvements()), "improvement", "improvements"),
		int(math.Round(v.OverallConfidence()*100)),
	)
}

func count(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
