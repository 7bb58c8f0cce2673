package journal

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHookRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	runs := []*HookRun{
		{Hook: "commit", Success: true, Duration: 1500 * time.Millisecond, Output: "minor bump", CreatedAt: base},
		{Hook: "organize", Success: true, FallbackUsed: true, Error: "analysis unavailable", CreatedAt: base.Add(time.Minute)},
		{Hook: "commit", Success: false, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range runs {
		if err := s.RecordHookRun(ctx, r); err != nil {
			t.Fatalf("RecordHookRun() error = %v", err)
		}
		if r.ID == "" {
			t.Error("RecordHookRun should assign an ID")
		}
	}

	got, err := s.ListHookRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListHookRuns() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ListHookRuns() returned %d runs, want 3", len(got))
	}
	if got[0].ID != runs[2].ID || got[2].ID != runs[0].ID {
		t.Errorf("runs not newest first: %v, %v, %v", got[0].Hook, got[1].Hook, got[2].Hook)
	}
	oldest := got[2]
	if !oldest.Success || oldest.Duration != 1500*time.Millisecond || oldest.Output != "minor bump" || !oldest.CreatedAt.Equal(base) {
		t.Errorf("oldest run = %+v", oldest)
	}
	if !got[1].FallbackUsed || got[1].Error != "analysis unavailable" {
		t.Errorf("middle run = %+v", got[1])
	}

	limited, err := s.ListHookRuns(ctx, 2)
	if err != nil || len(limited) != 2 {
		t.Errorf("ListHookRuns(2) = %d runs, %v", len(limited), err)
	}
}

func TestCache(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	args := []string{"--since", "v1.0.0", "--format", "json"}
	payload := bytes.Repeat([]byte(`{"scope":{}}`), 100)

	if _, _, found, err := s.Get(ctx, args); err != nil || found {
		t.Fatalf("Get() on empty cache = found %v, err %v", found, err)
	}
	if err := s.Put(ctx, args, payload, "1.2.3"); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, version, found, err := s.Get(ctx, args)
	if err != nil || !found {
		t.Fatalf("Get() = found %v, err %v", found, err)
	}
	if !bytes.Equal(got, payload) || version != "1.2.3" {
		t.Errorf("Get() = %d bytes, version %q", len(got), version)
	}

	if _, _, found, _ := s.Get(ctx, []string{"--format", "json"}); found {
		t.Error("different arguments must not share an entry")
	}

	if err := s.Put(ctx, args, []byte("newer"), ""); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, version, _, _ = s.Get(ctx, args)
	if string(got) != "newer" || version != "" {
		t.Errorf("replacement not stored: %q / %q", got, version)
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey([]string{"--since", "v1"})
	if len(a) != 64 {
		t.Errorf("key length = %d, want 64", len(a))
	}
	if a != CacheKey([]string{"--since", "v1"}) {
		t.Error("key must be deterministic")
	}
	if a == CacheKey([]string{"--since v1"}) {
		t.Error("argument boundaries must affect the key")
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	old := &HookRun{Hook: "commit", Success: true, CreatedAt: now.Add(-60 * 24 * time.Hour)}
	recent := &HookRun{Hook: "commit", Success: true, CreatedAt: now.Add(-time.Hour)}
	for _, r := range []*HookRun{old, recent} {
		if err := s.RecordHookRun(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Put(ctx, []string{"a"}, []byte("x"), ""); err != nil {
		t.Fatal(err)
	}

	res, err := s.Prune(ctx, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if res.HookRuns != 1 || res.CacheEntries != 0 {
		t.Errorf("Prune() = %+v", res)
	}
	left, _ := s.ListHookRuns(ctx, 0)
	if len(left) != 1 || left[0].ID != recent.ID {
		t.Errorf("remaining runs = %+v", left)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordHookRun(context.Background(), &HookRun{Hook: "commit", Success: true}); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s, err = Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	runs, _ := s.ListHookRuns(context.Background(), 0)
	if len(runs) != 1 {
		t.Errorf("runs after reopen = %d, want 1", len(runs))
	}
}
