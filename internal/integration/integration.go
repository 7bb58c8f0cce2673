// Package integration is the single entry point for running the release
// analysis tool: it builds arguments, drives the process bridge under the
// retry policy, parses and validates the output, and returns a read-only
// view. Every failure it returns is an *errors.ClassifiedError.
package integration

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"relkit/internal/analysis"
	"relkit/internal/errors"
	"relkit/internal/parser"
	"relkit/internal/procbridge"
	"relkit/internal/retry"
	"relkit/internal/slogutil"
)

// Runner launches the analysis tool. *procbridge.Bridge satisfies it.
type Runner interface {
	Execute(ctx context.Context, args []string, opts procbridge.Options) *procbridge.ExecutionResult
	IsAvailable(ctx context.Context, workingDir string) bool
	Version(ctx context.Context, workingDir string) (string, bool)
}

// ResultCache stores raw analysis output keyed by the argument vector that
// produced it.
type ResultCache interface {
	Put(ctx context.Context, args []string, payload []byte, toolVersion string) error
	Get(ctx context.Context, args []string) (payload []byte, toolVersion string, found bool, err error)
}

// Options configure an Integration.
type Options struct {
	WorkingDir string
	// Timeout overrides the runner's per-call timeout when positive.
	Timeout  time.Duration
	Strategy retry.Strategy
	// ValidateResults enables semantic validation. Nil means true.
	ValidateResults *bool
	Fallback        errors.FallbackOptions
	// UsageExitCode is the tool's reserved bad-invocation exit code.
	UsageExitCode int
}

// QueryOptions shape one analysis request.
type QueryOptions struct {
	// Since scopes the analysis to changes after a tag or commit.
	Since            string
	Args             []string
	SkipConfirmation bool
	DryRun           bool
}

// Integration runs analyses.
type Integration struct {
	runner     Runner
	opts       Options
	classifier *errors.Classifier
	engine     *retry.Engine
	logger     *slog.Logger
	cache      ResultCache
	now        func() time.Time
}

// New creates an Integration over runner.
func New(runner Runner, opts Options, logger *slog.Logger) *Integration {
	logger = slogutil.OrDiscard(logger)
	opts.Strategy = opts.Strategy.WithDefaults()
	return &Integration{
		runner:     runner,
		opts:       opts,
		classifier: errors.NewClassifier(opts.UsageExitCode),
		engine:     retry.NewEngine(logger),
		logger:     logger,
		now:        time.Now,
	}
}

// WithCache stores successful results in cache and enables Cached.
func (i *Integration) WithCache(cache ResultCache) *Integration {
	i.cache = cache
	return i
}

// WithEngine replaces the retry engine, typically to stub sleeping in tests.
func (i *Integration) WithEngine(engine *retry.Engine) *Integration {
	i.engine = engine
	return i
}

func (i *Integration) validating() bool {
	return i.opts.ValidateResults == nil || *i.opts.ValidateResults
}

// BuildArgs converts query options to the tool's argument vector. The
// machine-readable format flag is always present.
func BuildArgs(q QueryOptions) []string {
	var args []string
	if q.Since != "" {
		args = append(args, "--since", q.Since)
	}
	if q.SkipConfirmation {
		args = append(args, "--skip-confirmation")
	}
	if q.DryRun {
		args = append(args, "--dry-run")
	}
	args = append(args, q.Args...)
	return procbridge.WithJSONFormat(args)
}

// Analyze runs the tool and returns a view over its validated result.
func (i *Integration) Analyze(ctx context.Context, q QueryOptions) (*analysis.View, error) {
	args := BuildArgs(q)
	i.logger.Info("Starting release analysis", "args", args, "workingDir", i.opts.WorkingDir)

	res, err := retry.Do(ctx, i.engine, i.opts.Strategy, func(ctx context.Context) (*procbridge.ExecutionResult, error) {
		r := i.runner.Execute(ctx, args, procbridge.Options{
			WorkingDir: i.opts.WorkingDir,
			Timeout:    i.opts.Timeout,
		})
		if !r.Succeeded {
			return r, i.classifier.CreateError(r, nil)
		}
		return r, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if err := i.classifier.ValidateResult(res); err != nil {
		return nil, err
	}

	result, err := i.parse(res)
	if err != nil {
		return nil, err
	}

	toolVersion, _ := i.runner.Version(ctx, i.opts.WorkingDir)

	if i.cache != nil {
		if err := i.cache.Put(ctx, args, []byte(res.Stdout), toolVersion); err != nil {
			i.logger.Warn("Failed to cache analysis result", "error", err.Error())
		}
	}

	i.logger.Info("Release analysis completed",
		"bumpType", string(result.VersionRecommendation.BumpType),
		"durationMs", res.DurationMs,
	)
	return analysis.NewView(result, analysis.ExecutionMetadata{
		Duration:    res.Duration(),
		ToolVersion: toolVersion,
		Timestamp:   i.now().UTC(),
	}), nil
}

func (i *Integration) parse(res *procbridge.ExecutionResult) (*analysis.AnalysisResult, error) {
	result, perr := parser.Parse(res.Stdout)
	if err := i.classifier.ValidateParsing(res, perr); err != nil {
		return nil, err
	}
	if !i.validating() {
		return result, nil
	}

	vr := parser.Validate(result)
	if !vr.Valid {
		return nil, errors.New(errors.ParseError,
			fmt.Sprintf("Analysis result failed validation with %d error(s)", len(vr.Errors)),
			nil, res, vr.Errors)
	}
	for _, w := range vr.Warnings {
		i.logger.Warn("Analysis validation warning", "warning", w)
	}
	return result, nil
}

// AnalyzeDryRun runs a non-interactive preview.
func (i *Integration) AnalyzeDryRun(ctx context.Context, q QueryOptions) (*analysis.View, error) {
	q.DryRun = true
	q.SkipConfirmation = true
	return i.Analyze(ctx, q)
}

// AnalyzeSince analyzes changes after the given tag or commit.
func (i *Integration) AnalyzeSince(ctx context.Context, since string, q QueryOptions) (*analysis.View, error) {
	q.Since = since
	return i.Analyze(ctx, q)
}

// Cached returns the last stored result for q without running the tool.
func (i *Integration) Cached(ctx context.Context, q QueryOptions) (*analysis.View, error) {
	if i.cache == nil {
		return nil, errors.New(errors.Configuration, "No result cache configured", nil, nil, []string{
			"Enable the journal in .relkit/config.json",
		})
	}
	args := BuildArgs(q)
	payload, toolVersion, found, err := i.cache.Get(ctx, args)
	if err != nil {
		return nil, errors.New(errors.Unknown, "Failed to read cached analysis", err, nil, nil)
	}
	if !found {
		return nil, errors.New(errors.ExecutionFailed, "No cached analysis for these arguments", nil, nil, []string{
			"Run the analysis without --cached first",
		})
	}

	stub := &procbridge.ExecutionResult{Succeeded: true, Stdout: string(payload)}
	result, err := i.parse(stub)
	if err != nil {
		return nil, err
	}
	return analysis.NewView(result, analysis.ExecutionMetadata{
		ToolVersion: toolVersion,
		Timestamp:   i.now().UTC(),
	}), nil
}

// IsAvailable reports whether the tool can be launched.
func (i *Integration) IsAvailable(ctx context.Context) bool {
	return i.runner.IsAvailable(ctx, i.opts.WorkingDir)
}

// Version returns the tool's MAJOR.MINOR.PATCH version, if reported.
func (i *Integration) Version(ctx context.Context) (string, bool) {
	return i.runner.Version(ctx, i.opts.WorkingDir)
}

// HandleError logs err with guidance and returns it unchanged.
func (i *Integration) HandleError(err error) error {
	return errors.Handle(i.logger, err, i.opts.Fallback)
}

// classify guarantees the facade never returns an untyped failure.
func classify(err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.New(errors.Unknown, "Analysis was cancelled", err, nil, nil)
	}
	return errors.New(errors.Unknown, "Analysis failed", err, nil, nil)
}
