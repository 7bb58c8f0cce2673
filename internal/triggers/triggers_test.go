package triggers

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"
)

func TestWriter_WriteAndList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "triggers")
	w := NewWriter(dir)

	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base }

	path, err := w.Write(Trigger{
		Kind:      "trigger-creation",
		Operation: "release-analysis",
		Reason:    "hook fallback",
		Paths:     []string{".kiro/specs/a/completion/task-1-completion.md"},
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	name := filepath.Base(path)
	if !regexp.MustCompile(`^manual-1736935200-[0-9a-f]{8}\.toml$`).MatchString(name) {
		t.Errorf("file name = %q", name)
	}

	w.now = func() time.Time { return base.Add(-time.Hour) }
	if _, err := w.Write(Trigger{Kind: "detection", Operation: "release-detection"}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	list, err := w.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() returned %d triggers, want 2", len(list))
	}
	if list[0].Trigger.Operation != "release-detection" {
		t.Errorf("List() not sorted oldest first: %+v", list)
	}
	got := list[1].Trigger
	if got.ID == "" || got.Reason != "hook fallback" || len(got.Paths) != 1 {
		t.Errorf("trigger did not round trip: %+v", got)
	}
	if !got.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base)
	}
}

func TestWriter_ListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, ".trigger-123"), []byte("partial"), 0o644)
	os.WriteFile(filepath.Join(dir, "manual-1-broken.toml"), []byte("= not toml"), 0o644)

	list, err := w.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List() = %+v, want empty", list)
	}
}

func TestWriter_ListMissingDir(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "absent"))
	list, err := w.List()
	if err != nil || len(list) != 0 {
		t.Errorf("List() = %v, %v", list, err)
	}
}

func TestWriter_Remove(t *testing.T) {
	w := NewWriter(t.TempDir())
	path, err := w.Write(Trigger{Kind: "analysis", Operation: "analysis-execution"})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Remove(path); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still exists")
	}
	if err := w.Remove(path); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}

func TestFileName(t *testing.T) {
	tr := Trigger{ID: "0f8fad5b-d9cb-469f-a165-70867728950e", CreatedAt: time.Unix(1700000000, 0)}
	if got := FileName(tr); got != "manual-1700000000-0f8fad5b.toml" {
		t.Errorf("FileName() = %q", got)
	}
	if !IsTriggerFile("/x/" + FileName(tr)) {
		t.Error("IsTriggerFile rejected a canonical name")
	}
}

func TestWatcher_ProcessesExistingAndNewTriggers(t *testing.T) {
	w := NewWriter(t.TempDir())
	existing, err := w.Write(Trigger{Kind: "detection", Operation: "release-detection"})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	handled := make(chan Stored, 4)
	watcher := NewWatcher(w, func(_ context.Context, s Stored) error {
		handled <- s
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	waitFor := func(op string) Stored {
		t.Helper()
		select {
		case s := <-handled:
			if s.Trigger.Operation != op {
				t.Errorf("handled %q, want %q", s.Trigger.Operation, op)
			}
			return s
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", op)
			return Stored{}
		}
	}

	first := waitFor("release-detection")
	if first.Path != existing {
		t.Errorf("handled path = %q, want %q", first.Path, existing)
	}

	created, err := w.Write(Trigger{Kind: "analysis", Operation: "analysis-execution", CreatedAt: time.Now().Add(time.Minute)})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	waitFor("analysis-execution")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	for _, p := range []string{existing, created} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s was not removed after processing", filepath.Base(p))
		}
	}
}
