package eventbus

import (
	"context"
	"log/slog"
	"strings"
)

// SlogHandler wraps an slog.Handler and also publishes each record to the
// bus as a LogEntry, rendered as one text line.
type SlogHandler struct {
	inner slog.Handler
	bus   *Bus
	attrs []slog.Attr
	group string
}

// NewSlogHandler returns a handler that writes to inner and publishes to bus.
func NewSlogHandler(inner slog.Handler, bus *Bus) *SlogHandler {
	return &SlogHandler{inner: inner, bus: bus}
}

// Enabled delegates to the inner handler.
func (h *SlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle publishes the record and writes it to the inner handler.
func (h *SlogHandler) Handle(ctx context.Context, r slog.Record) error {
	h.bus.Publish(Event{
		Type:  LogEntry,
		Time:  r.Time,
		Level: r.Level,
		Text:  h.format(r),
	})
	return h.inner.Handle(ctx, r)
}

// format renders "LEVEL message key=value ...", handler attributes first.
func (h *SlogHandler) format(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Message)

	prefix := h.prefix()
	write := func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		v := a.Value.Resolve().String()
		if strings.ContainsAny(v, " \t\n\"") {
			v = quote(v)
		}
		b.WriteString(v)
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		a.Key = prefix + a.Key
		return write(a)
	})
	return b.String()
}

func (h *SlogHandler) prefix() string {
	if h.group == "" {
		return ""
	}
	return h.group + "."
}

func quote(s string) string {
	return `"` + strings.NewReplacer(`"`, `\"`, "\n", `\n`, "\t", `\t`).Replace(s) + `"`
}

// WithAttrs returns a new handler with the given attributes, qualified by
// the current group.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	all := append([]slog.Attr(nil), h.attrs...)
	prefix := h.prefix()
	for _, a := range attrs {
		a.Key = prefix + a.Key
		all = append(all, a)
	}
	return &SlogHandler{
		inner: h.inner.WithAttrs(attrs),
		bus:   h.bus,
		attrs: all,
		group: h.group,
	}
}

// WithGroup returns a new handler with the given group.
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &SlogHandler{
		inner: h.inner.WithGroup(name),
		bus:   h.bus,
		attrs: h.attrs,
		group: group,
	}
}
