// Package slogutil provides the line-oriented slog handler and logger
// constructors used across relkit.
package slogutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// LineHandler writes one record per line:
//
//	TIMESTAMP [level] Message | key=value key=value
type LineHandler struct {
	w      io.Writer
	level  slog.Leveler
	attrs  []slog.Attr
	prefix string
	mu     *sync.Mutex
}

// NewLineHandler creates a handler writing to w.
func NewLineHandler(w io.Writer, opts *slog.HandlerOptions) *LineHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &LineHandler{w: w, level: level, mu: &sync.Mutex{}}
}

// Enabled reports whether records at level are written.
func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats and writes r.
func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteString(ts.UTC().Format(time.RFC3339))
	buf.WriteString(" [")
	buf.WriteString(levelName(r.Level))
	buf.WriteString("] ")
	buf.WriteString(r.Message)

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.qualify(a))
		return true
	})

	first := true
	for _, a := range attrs {
		if a.Key == "" {
			continue
		}
		if first {
			buf.WriteString(" |")
			first = false
		}
		buf.WriteByte(' ')
		buf.WriteString(a.Key)
		buf.WriteByte('=')
		buf.WriteString(renderValue(a.Value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// WithAttrs returns a handler that always emits attrs.
func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(merged, h.attrs)
	for _, a := range attrs {
		merged = append(merged, h.qualify(a))
	}
	clone := *h
	clone.attrs = merged
	return &clone
}

// WithGroup returns a handler that prefixes subsequent keys with name.
func (h *LineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = h.prefix + name + "."
	return &clone
}

func (h *LineHandler) qualify(a slog.Attr) slog.Attr {
	if h.prefix == "" {
		return a
	}
	return slog.Attr{Key: h.prefix + a.Key, Value: a.Value}
}

func levelName(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "debug"
	case level < slog.LevelWarn:
		return "info"
	case level < slog.LevelError:
		return "warn"
	default:
		return "error"
	}
}

func renderValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t\n") {
			return fmt.Sprintf("%q", s)
		}
		return s
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindGroup:
		parts := make([]string, 0, len(v.Group()))
		for _, a := range v.Group() {
			parts = append(parts, a.Key+"="+renderValue(a.Value))
		}
		return "{" + strings.Join(parts, " ") + "}"
	default:
		return fmt.Sprint(v.Any())
	}
}
