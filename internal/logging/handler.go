// Package logging builds the process logger: a console handler with long
// values shortened, fanned out to a JSON log file that keeps them whole.
package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// FanoutHandler sends every record to all of its handlers.
type FanoutHandler struct {
	handlers []slog.Handler
}

// NewFanoutHandler combines handlers. Nil entries are dropped.
func NewFanoutHandler(handlers ...slog.Handler) *FanoutHandler {
	hs := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			hs = append(hs, h)
		}
	}
	return &FanoutHandler{handlers: hs}
}

func (h *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, hh := range h.handlers {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		hs[i] = hh.WithAttrs(attrs)
	}
	return &FanoutHandler{handlers: hs}
}

func (h *FanoutHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		hs[i] = hh.WithGroup(name)
	}
	return &FanoutHandler{handlers: hs}
}

// LockedWriter serializes writes to an underlying writer shared by several
// handlers.
type LockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLockedWriter wraps w.
func NewLockedWriter(w io.Writer) *LockedWriter {
	return &LockedWriter{w: w}
}

func (l *LockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Truncate shortens s to at most max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// TruncateAttrs returns a ReplaceAttr func shortening string values to max runes.
func TruncateAttrs(max int) func(groups []string, a slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		if a.Value.Kind() == slog.KindString {
			if s := a.Value.String(); len(s) > max {
				a.Value = slog.StringValue(Truncate(s, max))
			}
		}
		return a
	}
}
