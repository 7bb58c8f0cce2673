package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"relkit/internal/config"
	"relkit/internal/errors"
	"relkit/internal/hooks"
	"relkit/internal/integration"
	"relkit/internal/journal"
	"relkit/internal/metrics"
	"relkit/internal/paths"
	"relkit/internal/procbridge"
	"relkit/internal/retry"
	"relkit/internal/slogutil"
	"relkit/internal/triggers"
	"relkit/internal/workflow"
)

// app holds the collaborators shared by every command. Fields are built
// lazily so cheap commands never open the journal.
type app struct {
	repoRoot string
	cfg      *config.Config
	logs     *slogutil.Factory
	logger   *slog.Logger
	metrics  *metrics.Recorder

	journal *journal.Store
}

// newApp resolves the repository, loads configuration, and wires logging.
// Console logs go to stderr so stdout stays machine-readable.
func newApp() (*app, error) {
	start := repoFlag
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		start = wd
	}
	root := paths.FindRepoRoot(start)

	cfg, err := config.LoadConfig(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level := consoleLevel()
	settings := slogutil.Settings{
		Level:      cfg.Logging.Level,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	}
	var override *slog.Level
	if verbosity > 0 {
		override = &level
	}

	return &app{
		repoRoot: root,
		cfg:      cfg,
		logs:     slogutil.NewFactory(paths.LogsDir(root), settings, override),
		logger:   newConsoleLogger(cfg.Logging.Format, level),
		metrics:  metrics.New(),
	}, nil
}

func consoleLevel() slog.Level {
	return slogutil.LevelFromVerbosity(verbosity, quiet)
}

func newConsoleLogger(format string, level slog.Level) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slogutil.NewLogger(os.Stderr, level)
}

// componentLogger tees a component's file log with the console.
func (a *app) componentLogger(name string) *slog.Logger {
	file := a.logs.Component(name)
	return slog.New(slogutil.NewTeeHandler(file.Handler(), a.logger.Handler()))
}

func (a *app) Close() {
	if a.cfg.Metrics.Enabled && a.metrics.Observed() {
		path := a.cfg.MetricsTextfile(a.repoRoot)
		if err := a.metrics.WriteTextfile(path); err != nil {
			a.logger.Warn("Failed to write metrics", "path", path, "error", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("Failed to close journal", "error", err)
		}
	}
	_ = a.logs.Close()
}

func (a *app) bridge() *procbridge.Bridge {
	return procbridge.New(procbridge.Config{
		Command:  a.cfg.Analyzer.Command,
		BaseArgs: a.cfg.Analyzer.BaseArgs,
		Banner:   a.cfg.Analyzer.Banner,
		Timeout:  a.cfg.AnalyzerTimeout(),
		Grace:    a.cfg.AnalyzerGrace(),
		Logger:   a.componentLogger("procbridge"),
	})
}

func (a *app) strategy() retry.Strategy {
	s := retry.DefaultStrategy()
	s.MaxAttempts = a.cfg.Retry.MaxAttempts
	s.InitialDelay = a.cfg.InitialDelay()
	s.MaxDelay = a.cfg.MaxDelay()
	s.BackoffMultiplier = a.cfg.Retry.BackoffMultiplier
	return s
}

// integration builds the analysis facade. The journal-backed cache is
// attached when the journal is enabled and opens cleanly.
func (a *app) integration() *integration.Integration {
	validate := a.cfg.Analyzer.ValidateResults
	integ := integration.New(a.bridge(), integration.Options{
		WorkingDir:      a.repoRoot,
		Strategy:        a.strategy(),
		ValidateResults: &validate,
		Fallback:        errors.FallbackOptions{Enabled: true},
		UsageExitCode:   a.cfg.Analyzer.UsageExitCode,
	}, a.componentLogger("integration"))

	if store := a.openJournal(); store != nil {
		integ.WithCache(store)
	}
	return integ
}

// openJournal returns nil when the journal is disabled or unavailable;
// callers treat it as optional.
func (a *app) openJournal() *journal.Store {
	if a.journal != nil || !a.cfg.Journal.Enabled {
		return a.journal
	}
	store, err := journal.Open(paths.Dir(a.repoRoot), a.componentLogger("journal"))
	if err != nil {
		a.logger.Warn("Journal unavailable", "error", err)
		return nil
	}
	a.journal = store
	return store
}

func (a *app) triggerWriter() *triggers.Writer {
	return triggers.NewWriter(paths.TriggersDir(a.repoRoot))
}

// guard logs to workflow-preservation.log, the file health checks inspect.
func (a *app) guard() *workflow.Guard {
	return workflow.New(workflow.Options{
		Store:          workflow.NewFileStateStore(a.repoRoot),
		Triggers:       a.triggerWriter(),
		Logger:         a.logs.Component("workflow-preservation"),
		LogPath:        paths.PreservationLogPath(a.repoRoot),
		StuckThreshold: a.cfg.StuckThreshold(),
	})
}

func (a *app) hookBridge() (*hooks.Bridge, error) {
	hcfg, err := hooks.LoadConfig(paths.HooksConfigPath(a.repoRoot))
	if err != nil {
		return nil, fmt.Errorf("failed to load hook config: %w", err)
	}
	deps := hooks.Deps{
		Analyzer: a.integration(),
		Guard:    a.guard(),
		Triggers: a.triggerWriter(),
		Recorder: a.recorder(),
		Logger:   a.componentLogger("hooks"),
	}
	return hooks.New(hcfg, deps), nil
}

// recorder counts hook runs and journals them when the journal is open.
func (a *app) recorder() *runRecorder {
	return &runRecorder{journal: a.openJournal(), metrics: a.metrics}
}

type runRecorder struct {
	journal *journal.Store
	metrics *metrics.Recorder
}

func (r *runRecorder) RecordHookRun(ctx context.Context, run *journal.HookRun) error {
	r.metrics.ObserveHook(run.Hook, run.Success, run.FallbackUsed)
	if r.journal == nil {
		return nil
	}
	return r.journal.RecordHookRun(ctx, run)
}

// newContext cancels on SIGINT or SIGTERM.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
