package slogutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// levelSilent sits above every standard level.
const levelSilent = slog.Level(100)

// NewLogger returns a logger that writes lines to w.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewLineHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewFileLogger opens path for appending, creating parent directories.
func NewFileLogger(path string, level slog.Level) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(f, level), f, nil
}

// NewDiscardLogger returns a logger that writes nothing.
func NewDiscardLogger() *slog.Logger {
	return slog.New(NewLineHandler(io.Discard, &slog.HandlerOptions{Level: levelSilent}))
}

// OrDiscard returns l, or a discard logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return NewDiscardLogger()
	}
	return l
}

// LevelFromString maps debug, info, warn(ing), error to a level. Anything
// else is info.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromVerbosity maps -v counts to a level. The CLI default is warn.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	switch {
	case quiet:
		return levelSilent
	case verbosity <= 0:
		return slog.LevelWarn
	case verbosity == 1:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// TeeHandler fans records out to several handlers.
type TeeHandler struct {
	handlers []slog.Handler
}

// NewTeeHandler creates a TeeHandler.
func NewTeeHandler(handlers ...slog.Handler) *TeeHandler {
	return &TeeHandler{handlers: handlers}
}

// Enabled is true if any child is enabled.
func (t *TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle forwards r to every enabled child and returns the first error.
func (t *TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WithAttrs applies attrs to every child.
func (t *TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &TeeHandler{handlers: out}
}

// WithGroup applies name to every child.
func (t *TeeHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithGroup(name)
	}
	return &TeeHandler{handlers: out}
}
