package workflow

import (
	"os"
	"testing"
	"time"
)

func TestFileStateStore_SaveLoadClear(t *testing.T) {
	store := NewFileStateStore(t.TempDir())

	st, err := store.Load()
	if err != nil || st != nil {
		t.Fatalf("Load() on empty store = %v, %v", st, err)
	}

	want := State{InProgress: true, Operation: "release-detection", StartTime: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || got.Operation != want.Operation || !got.StartTime.Equal(want.StartTime) || !got.InProgress {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("marker still exists after Clear")
	}
	if err := store.Clear(); err != nil {
		t.Errorf("Clear() on missing marker = %v", err)
	}
}

func TestFileStateStore_ReleaseKeepsForeignMarker(t *testing.T) {
	store := NewFileStateStore(t.TempDir())
	start := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	mine := State{InProgress: true, Operation: "release-detection", StartTime: start}
	theirs := State{InProgress: true, Operation: "trigger-creation", StartTime: start.Add(time.Second)}

	if err := store.Save(mine); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(theirs); err != nil {
		t.Fatal(err)
	}
	if err := store.Release(mine); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	got, _ := store.Load()
	if got == nil || got.Operation != "trigger-creation" {
		t.Fatalf("foreign marker was removed: %+v", got)
	}
	if err := store.Release(theirs); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if got, _ := store.Load(); got != nil {
		t.Errorf("own marker was kept: %+v", got)
	}
}

func TestFileStateStore_CorruptMarker(t *testing.T) {
	store := NewFileStateStore(t.TempDir())
	if err := store.Save(State{Operation: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(store.Path(), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(); err == nil {
		t.Error("Load() should fail on a corrupt marker")
	}
}
