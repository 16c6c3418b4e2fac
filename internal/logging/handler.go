package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// ComponentKey is the attribute a package sets on its logger to name
// itself. The text handler renders it as a [component] tag before the
// message instead of a key=value pair.
const ComponentKey = "component"

// timeLayout keeps milliseconds so events line up with backup ids.
const timeLayout = "15:04:05.000"

// palette holds the colors of one handler. The zero palette means plain text.
type palette struct {
	time      *color.Color
	component *color.Color
	key       *color.Color
	levels    map[slog.Level]*color.Color
}

func newPalette() palette {
	return palette{
		time:      color.New(color.FgHiBlack),
		component: color.New(color.FgBlue),
		key:       color.New(color.FgCyan),
		levels: map[slog.Level]*color.Color{
			LevelTrace:      color.New(color.FgHiBlack),
			slog.LevelDebug: color.New(color.FgMagenta),
			slog.LevelInfo:  color.New(color.FgGreen),
			slog.LevelWarn:  color.New(color.FgYellow),
			slog.LevelError: color.New(color.FgRed, color.Bold),
		},
	}
}

func (p palette) paint(c *color.Color, s string) string {
	if c == nil {
		return s
	}
	return c.Sprint(s)
}

func (p palette) level(l slog.Level) *color.Color {
	switch {
	case l >= slog.LevelError:
		return p.levels[slog.LevelError]
	case l >= slog.LevelWarn:
		return p.levels[slog.LevelWarn]
	case l >= slog.LevelInfo:
		return p.levels[slog.LevelInfo]
	case l > LevelTrace:
		return p.levels[slog.LevelDebug]
	default:
		return p.levels[LevelTrace]
	}
}

// Handler is the terminal text handler. Lines look like
//
//	10:07:12.345 INFO  [backup] backup created id=20260123T100712.345-9f3c files=3
type Handler struct {
	opts      slog.HandlerOptions
	out       io.Writer
	mu        *sync.Mutex
	colors    palette
	component string
	attrs     []slog.Attr
	groups    []string
}

// NewHandler creates a text handler writing to out. Colors are used only
// when out is a color-capable terminal.
func NewHandler(out io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	h := &Handler{opts: *opts, out: out, mu: &sync.Mutex{}}
	if SupportsColor(out) {
		h.colors = newPalette()
	}
	return h
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats r as a single line. The line is built first and written
// with one call so concurrent loggers never interleave.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if !r.Time.IsZero() {
		b.WriteString(h.colors.paint(h.colors.time, r.Time.Format(timeLayout)))
		b.WriteByte(' ')
	}

	name := levelName(r.Level)
	b.WriteString(h.colors.paint(h.colors.level(r.Level), name))
	b.WriteString(strings.Repeat(" ", max(1, 6-len(name))))

	component := h.component
	var attrs []slog.Attr
	prefix := h.groupPrefix()
	r.Attrs(func(a slog.Attr) bool {
		if prefix == "" && a.Key == ComponentKey && a.Value.Kind() == slog.KindString {
			component = a.Value.String()
			return true
		}
		attrs = append(attrs, a)
		return true
	})

	if component != "" {
		b.WriteString(h.colors.paint(h.colors.component, "["+component+"]"))
		b.WriteByte(' ')
	}
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		h.appendAttr(&b, a, "")
	}
	for _, a := range attrs {
		h.appendAttr(&b, a, prefix)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *Handler) groupPrefix() string {
	if len(h.groups) == 0 {
		return ""
	}
	return strings.Join(h.groups, ".") + "."
}

func (h *Handler) appendAttr(b *strings.Builder, a slog.Attr, prefix string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, ga, prefix+a.Key+".")
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(h.colors.paint(h.colors.key, prefix+a.Key))
	b.WriteByte('=')
	b.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return strconv.Quote(err.Error())
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// levelName renders LevelTrace as TRACE instead of slog's DEBUG-4.
func levelName(l slog.Level) string {
	if l <= LevelTrace {
		return "TRACE"
	}
	return l.String()
}

// WithAttrs returns a new Handler with the given attributes. A component
// attribute set outside any group replaces the handler's component tag.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newH := *h
	newH.attrs = make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newH.attrs, h.attrs)
	prefix := h.groupPrefix()
	for _, a := range attrs {
		if prefix == "" && a.Key == ComponentKey && a.Value.Kind() == slog.KindString {
			newH.component = a.Value.String()
			continue
		}
		a.Key = prefix + a.Key
		newH.attrs = append(newH.attrs, a)
	}
	return &newH
}

// WithGroup returns a new Handler whose later keys carry the dotted group path.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newH := *h
	newH.groups = append(append([]string(nil), h.groups...), name)
	return &newH
}
