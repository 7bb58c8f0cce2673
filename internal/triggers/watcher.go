package triggers

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"relkit/internal/paths"
	"relkit/internal/slogutil"
)

// Handler processes one trigger. Returning nil removes the trigger file.
type Handler func(ctx context.Context, s Stored) error

// Watcher hands new trigger files to a Handler as they appear.
type Watcher struct {
	writer  *Writer
	handler Handler
	logger  *slog.Logger

	mu   sync.Mutex
	seen map[string]bool
}

// NewWatcher creates a Watcher over writer's directory.
func NewWatcher(writer *Writer, handler Handler, logger *slog.Logger) *Watcher {
	return &Watcher{
		writer:  writer,
		handler: handler,
		logger:  slogutil.OrDiscard(logger),
		seen:    make(map[string]bool),
	}
}

// Run drains existing triggers, then watches for new ones until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := paths.EnsureDir(w.writer.Dir()); err != nil {
		return fmt.Errorf("failed to create trigger directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.writer.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.writer.Dir(), err)
	}
	w.logger.Info("Watching for manual triggers", "dir", w.writer.Dir())

	existing, err := w.writer.List()
	if err != nil {
		return err
	}
	for _, s := range existing {
		w.process(ctx, s.Path)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !IsTriggerFile(event.Name) {
				continue
			}
			w.process(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Trigger watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	w.mu.Lock()
	if w.seen[path] {
		w.mu.Unlock()
		return
	}
	w.seen[path] = true
	w.mu.Unlock()

	t, err := Read(path)
	if err != nil {
		w.logger.Warn("Skipping unreadable trigger", "file", filepath.Base(path), "error", err.Error())
		return
	}
	s := Stored{Path: path, Trigger: t}
	if err := w.handler(ctx, s); err != nil {
		w.logger.Warn("Trigger handler failed", "id", t.ID, "operation", t.Operation, "error", err.Error())
		return
	}
	if err := w.writer.Remove(path); err != nil {
		w.logger.Warn("Failed to remove processed trigger", "file", filepath.Base(path), "error", err.Error())
		return
	}
	w.logger.Info("Processed manual trigger", "id", t.ID, "operation", t.Operation)
}
