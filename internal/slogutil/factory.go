package slogutil

import (
	"io"
	"log/slog"
	"path/filepath"
)

// Settings is the subset of logging configuration the factory needs.
type Settings struct {
	Level      string
	MaxSize    string
	MaxBackups int
}

// Factory hands out per-component file loggers under a single logs
// directory and owns the files it opens.
type Factory struct {
	logsDir  string
	settings Settings
	override *slog.Level
	closers  []io.Closer
}

// NewFactory creates a Factory writing into logsDir. A non-nil override
// wins over Settings.Level.
func NewFactory(logsDir string, settings Settings, override *slog.Level) *Factory {
	return &Factory{logsDir: logsDir, settings: settings, override: override}
}

// Level reports the effective level.
func (f *Factory) Level() slog.Level {
	if f.override != nil {
		return *f.override
	}
	return LevelFromString(f.settings.Level)
}

// Component returns a logger writing to <logsDir>/<name>.log. Failures to
// open the file degrade to a discard logger so logging never blocks work.
func (f *Factory) Component(name string) *slog.Logger {
	if f.logsDir == "" {
		return NewDiscardLogger()
	}
	path := filepath.Join(f.logsDir, name+".log")
	logger, closer, err := NewFileLoggerWithRotation(path, f.Level(), f.settings.MaxSize, f.settings.MaxBackups)
	if err != nil {
		return NewDiscardLogger()
	}
	f.closers = append(f.closers, closer)
	return logger.With("component", name)
}

// Close closes every file opened by the factory.
func (f *Factory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
