package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"relkit/internal/slogutil"
	"relkit/internal/triggers"
)

// DefaultStuckThreshold is the marker age after which an operation is
// considered stuck.
const DefaultStuckThreshold = 5 * time.Minute

// FallbackResult is produced only by a compensating fallback.
type FallbackResult struct {
	Success      bool   `json:"success" yaml:"success"`
	FallbackUsed bool   `json:"fallbackUsed" yaml:"fallbackUsed"`
	Operation    string `json:"operation" yaml:"operation"`
	Message      string `json:"message" yaml:"message"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// FallbackFunc compensates for a failed operation. Problems are reported in
// the result rather than returned.
type FallbackFunc func(ctx context.Context, operation string) FallbackResult

// Outcome is the result of ExecuteTransparently.
type Outcome[T any] struct {
	Result       T
	FallbackUsed bool
	Err          error
}

// PreserveResult is the result of Guard.Preserve.
type PreserveResult struct {
	Result       any    `json:"result,omitempty" yaml:"result,omitempty"`
	Preserved    bool   `json:"preserved" yaml:"preserved"`
	FallbackUsed bool   `json:"fallbackUsed" yaml:"fallbackUsed"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Options configure a Guard.
type Options struct {
	Store StateStore
	// Triggers receives manual trigger files written by fallbacks.
	Triggers *triggers.Writer
	// Logger should write to the preservation log.
	Logger         *slog.Logger
	LogPath        string
	StuckThreshold time.Duration
}

// Guard runs automation steps so that failures never reach the human
// workflow.
type Guard struct {
	store          StateStore
	triggers       *triggers.Writer
	logger         *slog.Logger
	logPath        string
	stuckThreshold time.Duration
	fallbacks      map[OperationKind]FallbackFunc
	now            func() time.Time
}

// New creates a Guard with the standard fallback table.
func New(opts Options) *Guard {
	g := &Guard{
		store:          opts.Store,
		triggers:       opts.Triggers,
		logger:         slogutil.OrDiscard(opts.Logger),
		logPath:        opts.LogPath,
		stuckThreshold: opts.StuckThreshold,
		now:            time.Now,
	}
	if g.stuckThreshold <= 0 {
		g.stuckThreshold = DefaultStuckThreshold
	}
	g.fallbacks = map[OperationKind]FallbackFunc{
		Detection:         g.skipDetection,
		TriggerCreation:   g.writeManualTrigger,
		AnalysisExecution: g.deferAnalysis,
	}
	return g
}

// Fallback returns the compensating action registered for the named
// operation.
func (g *Guard) Fallback(name string) (FallbackFunc, bool) {
	fb, ok := g.fallbacks[KindOf(name)]
	return fb, ok
}

func (g *Guard) begin(name string) State {
	st := State{InProgress: true, Operation: name, StartTime: g.now().UTC()}
	if g.store != nil {
		if err := g.store.Save(st); err != nil {
			g.logger.Warn("Failed to save workflow state", "operation", name, "error", err.Error())
		}
	}
	return st
}

func (g *Guard) end(st State) {
	if g.store == nil {
		return
	}
	if err := g.store.Release(st); err != nil {
		g.logger.Warn("Failed to clear workflow state", "operation", st.Operation, "error", err.Error())
	}
}

// ExecuteTransparently runs primary with the in-progress marker set. When
// primary fails and fallback is non-nil, fallback's outcome replaces it.
// The marker is always removed afterwards.
func ExecuteTransparently[T any](ctx context.Context, g *Guard, name string, primary func(context.Context) (T, error), fallback func(context.Context) (T, error)) Outcome[T] {
	st := g.begin(name)
	defer g.end(st)

	result, err := runRecovered(ctx, primary)
	if err == nil {
		g.logger.Info("Operation completed", "operation", name)
		return Outcome[T]{Result: result}
	}

	g.logger.Warn("Operation failed", "operation", name, "error", err.Error())
	if fallback == nil {
		return Outcome[T]{Err: err}
	}

	result, ferr := runRecovered(ctx, fallback)
	if ferr != nil {
		g.logger.Error("Fallback failed", "operation", name, "error", ferr.Error())
		return Outcome[T]{FallbackUsed: true, Err: ferr}
	}
	g.logger.Info("Fallback completed", "operation", name)
	return Outcome[T]{Result: result, FallbackUsed: true}
}

// runRecovered turns a panic in fn into an error so the marker is still
// released and the caller's workflow continues.
func runRecovered[T any](ctx context.Context, fn func(context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Preserve runs primary under the guard. Disruptive operations are logged
// with a warning and still run. When primary fails, the fallback registered
// for the operation's kind runs; the workflow counts as preserved whenever
// a fallback ran, whatever its own success flag.
func (g *Guard) Preserve(ctx context.Context, name string, primary func(context.Context) (any, error)) PreserveResult {
	kind := KindOf(name)
	if !kind.Transparent() {
		g.logger.Warn("Operation may disrupt the workflow", "operation", name, "kind", kind.String())
	}

	var fallback func(context.Context) (any, error)
	if fb, ok := g.fallbacks[kind]; ok {
		fallback = func(ctx context.Context) (any, error) {
			return fb(ctx, name), nil
		}
	}

	out := ExecuteTransparently(ctx, g, name, primary, fallback)
	res := PreserveResult{
		Result:       out.Result,
		Preserved:    out.Err == nil,
		FallbackUsed: out.FallbackUsed,
	}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}
	return res
}

func (g *Guard) skipDetection(_ context.Context, operation string) FallbackResult {
	g.logger.Info("Skipping release detection; it will be retried on the next hook", "operation", operation)
	return FallbackResult{
		Success:      true,
		FallbackUsed: true,
		Operation:    operation,
		Message:      "Release detection skipped; it will run again on the next trigger",
	}
}

func (g *Guard) writeManualTrigger(_ context.Context, operation string) FallbackResult {
	res := FallbackResult{FallbackUsed: true, Operation: operation}
	if g.triggers == nil {
		res.Error = "no trigger directory configured"
		res.Message = "Manual trigger could not be written"
		return res
	}
	path, err := g.triggers.Write(triggers.Trigger{
		Kind:      "manual",
		Operation: operation,
		Reason:    "automatic trigger creation failed",
		Source:    "workflow-fallback",
		CreatedAt: g.now(),
	})
	if err != nil {
		g.logger.Error("Failed to write manual trigger", "operation", operation, "error", err.Error())
		res.Error = err.Error()
		res.Message = "Manual trigger could not be written"
		return res
	}
	g.logger.Info("Wrote manual trigger", "operation", operation, "path", path)
	res.Success = true
	res.Message = fmt.Sprintf("Manual trigger written to %s", path)
	return res
}

func (g *Guard) deferAnalysis(_ context.Context, operation string) FallbackResult {
	g.logger.Info("Deferring release analysis to manual invocation", "operation", operation)
	return FallbackResult{
		Success:      true,
		FallbackUsed: true,
		Operation:    operation,
		Message:      "Analysis deferred; run 'relkit analyze' manually",
	}
}
