package integration

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"relkit/internal/analysis"
	"relkit/internal/errors"
	"relkit/internal/procbridge"
	"relkit/internal/retry"
)

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "parser", "testdata", "analysis.json"))
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}
	return string(data)
}

func code(c int) *int { return &c }

func ok(stdout string) *procbridge.ExecutionResult {
	return &procbridge.ExecutionResult{Succeeded: true, Stdout: stdout, ExitCode: code(0), DurationMs: 1200}
}

// fakeRunner replays scripted results and records the calls it receives.
type fakeRunner struct {
	results   []*procbridge.ExecutionResult
	calls     [][]string
	available bool
	version   string
}

func (f *fakeRunner) Execute(_ context.Context, args []string, _ procbridge.Options) *procbridge.ExecutionResult {
	f.calls = append(f.calls, slices.Clone(args))
	idx := len(f.calls) - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx]
}

func (f *fakeRunner) IsAvailable(context.Context, string) bool { return f.available }

func (f *fakeRunner) Version(context.Context, string) (string, bool) {
	return f.version, f.version != ""
}

type memoryCache struct {
	entries map[string][]byte
	version string
}

func (m *memoryCache) Put(_ context.Context, args []string, payload []byte, toolVersion string) error {
	if m.entries == nil {
		m.entries = map[string][]byte{}
	}
	m.entries[strings.Join(args, "\x00")] = payload
	m.version = toolVersion
	return nil
}

func (m *memoryCache) Get(_ context.Context, args []string) ([]byte, string, bool, error) {
	p, found := m.entries[strings.Join(args, "\x00")]
	return p, m.version, found, nil
}

func newTestIntegration(runner Runner, opts Options) *Integration {
	if opts.Strategy.MaxAttempts == 0 {
		opts.Strategy = retry.Strategy{MaxAttempts: 3, InitialDelay: time.Millisecond}
	}
	noSleep := &retry.Engine{Sleep: func(context.Context, time.Duration) error { return nil }}
	return New(runner, opts, nil).WithEngine(noSleep)
}

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name string
		q    QueryOptions
		want []string
	}{
		{"empty", QueryOptions{}, []string{"--format", "json"}},
		{"since", QueryOptions{Since: "v1.0.0"}, []string{"--since", "v1.0.0", "--format", "json"}},
		{
			"everything",
			QueryOptions{Since: "abc123", SkipConfirmation: true, DryRun: true, Args: []string{"--verbose"}},
			[]string{"--since", "abc123", "--skip-confirmation", "--dry-run", "--verbose", "--format", "json"},
		},
		{"explicit json not duplicated", QueryOptions{Args: []string{"--format", "json"}}, []string{"--format", "json"}},
		{"other format replaced", QueryOptions{Args: []string{"--format", "summary"}}, []string{"--format", "json"}},
		{
			"inline format replaced",
			QueryOptions{Since: "v1.0.0", Args: []string{"--format=detailed", "--verbose"}},
			[]string{"--since", "v1.0.0", "--verbose", "--format", "json"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildArgs(tt.q); !slices.Equal(got, tt.want) {
				t.Errorf("BuildArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAnalyze_Success(t *testing.T) {
	runner := &fakeRunner{results: []*procbridge.ExecutionResult{ok(loadFixture(t))}, version: "1.2.3"}
	cache := &memoryCache{}
	integ := newTestIntegration(runner, Options{}).WithCache(cache)

	view, err := integ.AnalyzeSince(context.Background(), "v1.0.0", QueryOptions{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if view.BumpType() != analysis.BumpMajor {
		t.Errorf("BumpType() = %s, want major", view.BumpType())
	}
	if view.Metadata().ToolVersion != "1.2.3" {
		t.Errorf("ToolVersion = %q, want 1.2.3", view.Metadata().ToolVersion)
	}
	if view.Metadata().Duration != 1200*time.Millisecond {
		t.Errorf("Duration = %v, want 1.2s", view.Metadata().Duration)
	}
	if len(runner.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(runner.calls))
	}
	if !slices.Equal(runner.calls[0], []string{"--since", "v1.0.0", "--format", "json"}) {
		t.Errorf("args = %v", runner.calls[0])
	}
	if len(cache.entries) != 1 {
		t.Errorf("cache entries = %d, want 1", len(cache.entries))
	}
}

func TestAnalyzeDryRun(t *testing.T) {
	runner := &fakeRunner{results: []*procbridge.ExecutionResult{ok(loadFixture(t))}}
	integ := newTestIntegration(runner, Options{})

	if _, err := integ.AnalyzeDryRun(context.Background(), QueryOptions{}); err != nil {
		t.Fatalf("AnalyzeDryRun() error = %v", err)
	}
	want := []string{"--skip-confirmation", "--dry-run", "--format", "json"}
	if !slices.Equal(runner.calls[0], want) {
		t.Errorf("args = %v, want %v", runner.calls[0], want)
	}
}

func TestAnalyze_RetriesTransientFailures(t *testing.T) {
	flaky := &procbridge.ExecutionResult{Stderr: "Error: ECONNREFUSED", ExitCode: code(1), Error: "process exited with code 1"}
	runner := &fakeRunner{results: []*procbridge.ExecutionResult{flaky, ok(loadFixture(t))}}
	integ := newTestIntegration(runner, Options{})

	if _, err := integ.Analyze(context.Background(), QueryOptions{}); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if len(runner.calls) != 2 {
		t.Errorf("calls = %d, want 2", len(runner.calls))
	}
}

func TestAnalyze_Failures(t *testing.T) {
	fixture := loadFixture(t)
	badVersion := strings.Replace(fixture, `"currentVersion": "1.0.0"`, `"currentVersion": "one"`, 1)

	tests := []struct {
		name      string
		result    *procbridge.ExecutionResult
		want      errors.Category
		wantCalls int
		wantText  string
	}{
		{
			name:      "configuration not retried",
			result:    &procbridge.ExecutionResult{Stderr: "Invalid argument: --bogus", ExitCode: code(2), Error: "process exited with code 2"},
			want:      errors.Configuration,
			wantCalls: 1,
		},
		{
			name:      "missing tool",
			result:    &procbridge.ExecutionResult{Error: `failed to spawn process: exec: "npm": executable file not found in $PATH`},
			want:      errors.CliUnavailable,
			wantCalls: 1,
		},
		{
			name:      "timeouts exhaust attempts",
			result:    &procbridge.ExecutionResult{TimedOut: true, Error: "process timed out after 5m0s"},
			want:      errors.Unknown,
			wantCalls: 3,
			wantText:  "operation failed after 3 attempts",
		},
		{
			name:      "empty output",
			result:    ok("   "),
			want:      errors.ExecutionFailed,
			wantCalls: 1,
			wantText:  "CLI produced no output",
		},
		{
			name:      "malformed json",
			result:    ok("{not json"),
			want:      errors.ParseError,
			wantCalls: 1,
			wantText:  "Failed to parse CLI output",
		},
		{
			name:      "semantic validation",
			result:    ok(badVersion),
			want:      errors.ParseError,
			wantCalls: 1,
			wantText:  "failed validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{results: []*procbridge.ExecutionResult{tt.result}}
			integ := newTestIntegration(runner, Options{})

			_, err := integ.Analyze(context.Background(), QueryOptions{})
			if err == nil {
				t.Fatal("expected error")
			}
			ce, isClassified := errors.As(err)
			if !isClassified {
				t.Fatalf("error %T is not classified", err)
			}
			if ce.Category != tt.want {
				t.Errorf("category = %s, want %s", ce.Category, tt.want)
			}
			if len(runner.calls) != tt.wantCalls {
				t.Errorf("calls = %d, want %d", len(runner.calls), tt.wantCalls)
			}
			if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error %q missing %q", err.Error(), tt.wantText)
			}
		})
	}
}

func TestAnalyze_ValidationErrorsBecomeSuggestions(t *testing.T) {
	bad := strings.Replace(loadFixture(t), `"currentVersion": "1.0.0"`, `"currentVersion": "one"`, 1)
	integ := newTestIntegration(&fakeRunner{results: []*procbridge.ExecutionResult{ok(bad)}}, Options{})

	_, err := integ.Analyze(context.Background(), QueryOptions{})
	ce, _ := errors.As(err)
	if ce == nil || !slices.Contains(ce.RecoverySuggestions, "Invalid current version format: one") {
		t.Errorf("suggestions = %v", ce)
	}
}

func TestAnalyze_ValidationDisabled(t *testing.T) {
	bad := strings.Replace(loadFixture(t), `"currentVersion": "1.0.0"`, `"currentVersion": "one"`, 1)
	off := false
	integ := newTestIntegration(&fakeRunner{results: []*procbridge.ExecutionResult{ok(bad)}}, Options{ValidateResults: &off})

	view, err := integ.Analyze(context.Background(), QueryOptions{})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if view.CurrentVersion() != "one" {
		t.Errorf("CurrentVersion() = %q", view.CurrentVersion())
	}
}

func TestCached(t *testing.T) {
	runner := &fakeRunner{results: []*procbridge.ExecutionResult{ok(loadFixture(t))}, version: "1.2.3"}
	integ := newTestIntegration(runner, Options{}).WithCache(&memoryCache{})
	ctx := context.Background()

	if _, err := integ.Cached(ctx, QueryOptions{}); errors.CategoryOf(err) != errors.ExecutionFailed {
		t.Errorf("Cached() before analysis = %v, want EXECUTION_FAILED", err)
	}
	if _, err := integ.Analyze(ctx, QueryOptions{}); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	view, err := integ.Cached(ctx, QueryOptions{})
	if err != nil {
		t.Fatalf("Cached() error = %v", err)
	}
	if view.RecommendedVersion() != "2.0.0" || view.Metadata().ToolVersion != "1.2.3" {
		t.Errorf("cached view = %s / %s", view.RecommendedVersion(), view.Metadata().ToolVersion)
	}
	if len(runner.calls) != 1 {
		t.Errorf("Cached should not run the tool; calls = %d", len(runner.calls))
	}
}

func TestCached_NoCache(t *testing.T) {
	integ := newTestIntegration(&fakeRunner{results: []*procbridge.ExecutionResult{ok("")}}, Options{})
	if _, err := integ.Cached(context.Background(), QueryOptions{}); errors.CategoryOf(err) != errors.Configuration {
		t.Errorf("Cached() = %v, want CONFIGURATION", err)
	}
}

func TestProbes(t *testing.T) {
	integ := newTestIntegration(&fakeRunner{available: true, version: "2.4.1"}, Options{})
	if !integ.IsAvailable(context.Background()) {
		t.Error("IsAvailable() = false")
	}
	if v, found := integ.Version(context.Background()); !found || v != "2.4.1" {
		t.Errorf("Version() = %q, %v", v, found)
	}
}
