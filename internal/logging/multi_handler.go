package logging

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
)

// Tee fans records out to several handlers, each applying its own level.
// --log-file uses it to keep terminal output terse while the file gets
// everything.
type Tee []slog.Handler

var _ slog.Handler = Tee(nil)

// NewTee returns a handler writing to every non-nil handler in hs.
func NewTee(hs ...slog.Handler) Tee {
	t := make(Tee, 0, len(hs))
	for _, h := range hs {
		if h != nil {
			t = append(t, h)
		}
	}
	return t
}

// Enabled reports whether any handler accepts level.
func (t Tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes a clone of r to every handler that accepts it. All
// handlers run even when one fails; their errors are joined.
func (t Tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs applies attrs to every handler.
func (t Tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(Tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

// WithGroup applies the group to every handler.
func (t Tee) WithGroup(name string) slog.Handler {
	out := make(Tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
