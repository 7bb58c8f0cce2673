package workflow

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"relkit/internal/paths"
	"relkit/internal/slogutil"
	"relkit/internal/triggers"
)

type testEnv struct {
	root   string
	store  *FileStateStore
	writer *triggers.Writer
	logs   *bytes.Buffer
	guard  *Guard
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		root:   root,
		store:  NewFileStateStore(root),
		writer: triggers.NewWriter(paths.TriggersDir(root)),
		logs:   &bytes.Buffer{},
	}
	env.guard = New(Options{
		Store:    env.store,
		Triggers: env.writer,
		Logger:   slogutil.NewLogger(env.logs, slog.LevelDebug),
		LogPath:  paths.PreservationLogPath(root),
	})
	return env
}

func succeed(v any) func(context.Context) (any, error) {
	return func(context.Context) (any, error) { return v, nil }
}

func fail(msg string) func(context.Context) (any, error) {
	return func(context.Context) (any, error) { return nil, errors.New(msg) }
}

func TestExecuteTransparently(t *testing.T) {
	tests := []struct {
		name         string
		primary      func(context.Context) (any, error)
		fallback     func(context.Context) (any, error)
		wantResult   any
		wantFallback bool
		wantErr      string
	}{
		{"success", succeed("success"), nil, "success", false, ""},
		{"fallback replaces failure", fail("Operation failed"), succeed("fallback-success"), "fallback-success", true, ""},
		{"no fallback", fail("Operation failed"), nil, nil, false, "Operation failed"},
		{"fallback fails too", fail("Operation failed"), fail("Fallback failed"), nil, true, "Fallback failed"},
		{
			"panic is contained",
			func(context.Context) (any, error) { panic("boom") },
			nil, nil, false, "operation panicked: boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			out := ExecuteTransparently(context.Background(), env.guard, "test-operation", tt.primary, tt.fallback)
			if out.Result != tt.wantResult {
				t.Errorf("Result = %v, want %v", out.Result, tt.wantResult)
			}
			if out.FallbackUsed != tt.wantFallback {
				t.Errorf("FallbackUsed = %v, want %v", out.FallbackUsed, tt.wantFallback)
			}
			gotErr := ""
			if out.Err != nil {
				gotErr = out.Err.Error()
			}
			if gotErr != tt.wantErr {
				t.Errorf("Err = %q, want %q", gotErr, tt.wantErr)
			}
			if st, _ := env.store.Load(); st != nil {
				t.Errorf("marker left behind: %+v", st)
			}
		})
	}
}

func TestExecuteTransparently_MarkerPresentDuringRun(t *testing.T) {
	env := newTestEnv(t)
	var seen *State
	ExecuteTransparently(context.Background(), env.guard, "state-tracking", func(context.Context) (int, error) {
		seen, _ = env.store.Load()
		return 1, nil
	}, nil)
	if seen == nil || !seen.InProgress || seen.Operation != "state-tracking" {
		t.Errorf("marker during run = %+v", seen)
	}
}

func TestPreserve(t *testing.T) {
	tests := []struct {
		name          string
		operation     string
		primary       func(context.Context) (any, error)
		wantPreserved bool
		wantFallback  bool
		wantErr       string
	}{
		{"success", "release-detection", succeed("success"), true, false, ""},
		{"detection fallback", "release-detection", fail("Failed"), true, true, ""},
		{"analysis fallback", "analysis-execution", fail("Failed"), true, true, ""},
		{"trigger fallback", "trigger-creation", fail("Failed"), true, true, ""},
		{"unregistered", "unregistered-op-name", fail("Failed"), false, false, "Failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			res := env.guard.Preserve(context.Background(), tt.operation, tt.primary)
			if res.Preserved != tt.wantPreserved || res.FallbackUsed != tt.wantFallback {
				t.Errorf("Preserve() = %+v", res)
			}
			if res.Error != tt.wantErr {
				t.Errorf("Error = %q, want %q", res.Error, tt.wantErr)
			}
			if tt.wantFallback {
				fr, ok := res.Result.(FallbackResult)
				if !ok {
					t.Fatalf("Result = %T, want FallbackResult", res.Result)
				}
				if !fr.FallbackUsed || fr.Operation != tt.operation || !fr.Success {
					t.Errorf("fallback result = %+v", fr)
				}
			}
		})
	}
}

func TestPreserve_TriggerFallbackWritesFile(t *testing.T) {
	env := newTestEnv(t)
	env.guard.Preserve(context.Background(), "trigger-creation", fail("disk full"))

	list, err := env.writer.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("triggers = %d, want 1", len(list))
	}
	if list[0].Trigger.Kind != "manual" || list[0].Trigger.Operation != "trigger-creation" {
		t.Errorf("trigger = %+v", list[0].Trigger)
	}
	if !strings.HasPrefix(filepath.Base(list[0].Path), "manual-") {
		t.Errorf("path = %s", list[0].Path)
	}
}

func TestPreserve_TriggerFallbackWithoutWriterStillPreserves(t *testing.T) {
	g := New(Options{})
	res := g.Preserve(context.Background(), "trigger-creation", fail("boom"))
	if !res.Preserved || !res.FallbackUsed {
		t.Errorf("Preserve() = %+v", res)
	}
	if fr := res.Result.(FallbackResult); fr.Success || fr.Error == "" {
		t.Errorf("fallback result = %+v", fr)
	}
}

func TestPreserve_WarnsForDisruptiveOperations(t *testing.T) {
	env := newTestEnv(t)
	res := env.guard.Preserve(context.Background(), "package-update", succeed("ok"))
	if !res.Preserved {
		t.Errorf("disruptive operation should still run: %+v", res)
	}
	if !strings.Contains(env.logs.String(), "[warn] Operation may disrupt the workflow") {
		t.Errorf("missing warning:\n%s", env.logs.String())
	}

	env.logs.Reset()
	env.guard.Preserve(context.Background(), "release-detection", succeed("ok"))
	if strings.Contains(env.logs.String(), "may disrupt") {
		t.Error("transparent operation should not warn")
	}
}

// brokenStore fails every call.
type brokenStore struct{}

func (brokenStore) Save(State) error      { return errors.New("write failed") }
func (brokenStore) Load() (*State, error) { return nil, errors.New("read failed") }
func (brokenStore) Release(State) error   { return errors.New("delete failed") }
func (brokenStore) Clear() error          { return errors.New("delete failed") }

func TestGuard_StoreErrorsDoNotSurface(t *testing.T) {
	g := New(Options{Store: brokenStore{}})
	out := ExecuteTransparently(context.Background(), g, "test-operation", succeed("result"), nil)
	if out.Err != nil || out.Result != "result" {
		t.Errorf("Outcome = %+v", out)
	}

	health := g.Health(context.Background())
	if health.CurrentState != nil || health.Healthy {
		t.Errorf("Health() = %+v", health)
	}
	if rec := g.Recover(context.Background()); rec.Recovered {
		t.Errorf("Recover() = %+v", rec)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	env.guard.now = func() time.Time { return now }

	h := env.guard.Health(context.Background())
	if !h.Healthy || h.StateFileExists || h.CurrentState != nil || len(h.Issues) != 0 {
		t.Errorf("idle Health() = %+v", h)
	}

	if err := env.store.Save(State{InProgress: true, Operation: "recent", StartTime: now.Add(-time.Minute)}); err != nil {
		t.Fatal(err)
	}
	h = env.guard.Health(context.Background())
	if !h.Healthy || !h.StateFileExists || h.CurrentState == nil {
		t.Errorf("recent Health() = %+v", h)
	}

	if err := env.store.Save(State{InProgress: true, Operation: "test-operation", StartTime: now.Add(-10 * time.Minute)}); err != nil {
		t.Fatal(err)
	}
	h = env.guard.Health(context.Background())
	if h.Healthy || len(h.Issues) == 0 || !strings.Contains(h.Issues[0], "has been in progress") {
		t.Errorf("stuck Health() = %+v", h)
	}
}

func TestRecover(t *testing.T) {
	env := newTestEnv(t)

	rec := env.guard.Recover(context.Background())
	if !rec.Recovered || !strings.Contains(rec.Message, "No recovery needed") {
		t.Errorf("Recover() on idle = %+v", rec)
	}

	if err := env.store.Save(State{InProgress: true, Operation: "stuck-operation", StartTime: time.Now()}); err != nil {
		t.Fatal(err)
	}
	rec = env.guard.Recover(context.Background())
	if !rec.Recovered || !strings.Contains(rec.Message, "Recovered from stuck operation") {
		t.Errorf("Recover() = %+v", rec)
	}
	if st, _ := env.store.Load(); st != nil {
		t.Errorf("marker remains after recovery: %+v", st)
	}
}

func TestFallback(t *testing.T) {
	g := New(Options{})
	for _, name := range []string{"release-detection", "trigger-creation", "analysis-execution"} {
		if _, ok := g.Fallback(name); !ok {
			t.Errorf("no fallback for %s", name)
		}
	}
	if _, ok := g.Fallback("unknown-operation"); ok {
		t.Error("unexpected fallback for unknown-operation")
	}
}
