// Package logging provides the severity-split slog handler used by the
// harvester: warnings and errors go to stderr, routine progress to stdout,
// so operators can watch failures independently of normal output.
package logging

import (
	"context"
	"io"
	"log/slog"
)

// SplitHandler routes records at WARN and above to one handler and
// everything below to another.
type SplitHandler struct {
	out slog.Handler
	err slog.Handler
}

// NewSplit creates a SplitHandler writing JSON records to stdout/stderr
// equivalents, honouring the given minimum level.
func NewSplit(level slog.Level, stdout, stderr io.Writer) *SplitHandler {
	opts := &slog.HandlerOptions{Level: level}
	return &SplitHandler{
		out: slog.NewJSONHandler(stdout, opts),
		err: slog.NewJSONHandler(stderr, opts),
	}
}

// Enabled implements slog.Handler.
func (h *SplitHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= slog.LevelWarn {
		return h.err.Enabled(ctx, level)
	}
	return h.out.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SplitHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		return h.err.Handle(ctx, r)
	}
	return h.out.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *SplitHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SplitHandler{out: h.out.WithAttrs(attrs), err: h.err.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *SplitHandler) WithGroup(name string) slog.Handler {
	return &SplitHandler{out: h.out.WithGroup(name), err: h.err.WithGroup(name)}
}
