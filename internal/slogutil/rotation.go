package slogutil

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// RotatingFile is an append-only log file that is shifted to path.1,
// path.2, ... once it would grow past maxSize bytes.
type RotatingFile struct {
	mu         sync.Mutex
	path       string
	maxSize    int64
	maxBackups int
	f          *os.File
	written    int64
}

// OpenRotatingFile opens path for appending. A maxSize of zero disables
// rotation; a maxBackups of zero discards the old file on rotation.
func OpenRotatingFile(path string, maxSize int64, maxBackups int) (*RotatingFile, error) {
	rf := &RotatingFile{path: path, maxSize: maxSize, maxBackups: maxBackups}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (r *RotatingFile) open() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	r.f = f
	r.written = info.Size()
	return nil
}

// Write appends p, rotating first when the size limit would be crossed.
func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSize > 0 && r.written > 0 && r.written+int64(len(p)) > r.maxSize {
		// a failed rotation still leaves a writable file in most cases
		_ = r.rotate()
	}
	if r.f == nil {
		return 0, os.ErrClosed
	}
	n, err := r.f.Write(p)
	r.written += int64(n)
	return n, err
}

// Close closes the current file.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

func (r *RotatingFile) rotate() error {
	if r.f != nil {
		if err := r.f.Close(); err != nil {
			return err
		}
		r.f = nil
	}

	if r.maxBackups <= 0 {
		_ = os.Remove(r.path)
	} else {
		_ = os.Remove(r.backup(r.maxBackups))
		for i := r.maxBackups - 1; i >= 1; i-- {
			if _, err := os.Stat(r.backup(i)); err == nil {
				_ = os.Rename(r.backup(i), r.backup(i+1))
			}
		}
		_ = os.Rename(r.path, r.backup(1))
	}
	return r.open()
}

func (r *RotatingFile) backup(n int) string {
	return fmt.Sprintf("%s.%d", r.path, n)
}

var sizePattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(B|KB|MB|GB)?$`)

// ParseSize converts "500KB", "10MB", "1GB" or a bare byte count into
// bytes. Invalid input yields zero.
func ParseSize(s string) int64 {
	m := sizePattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	unit := map[string]float64{"": 1, "B": 1, "KB": 1 << 10, "MB": 1 << 20, "GB": 1 << 30}[m[2]]
	return int64(value * unit)
}

// NewFileLoggerWithRotation returns a file logger that rotates at maxSize.
// An empty or invalid maxSize falls back to NewFileLogger.
func NewFileLoggerWithRotation(path string, level slog.Level, maxSize string, maxBackups int) (*slog.Logger, io.Closer, error) {
	size := ParseSize(maxSize)
	if size <= 0 {
		return NewFileLogger(path, level)
	}
	rf, err := OpenRotatingFile(path, size, maxBackups)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(rf, level), rf, nil
}
