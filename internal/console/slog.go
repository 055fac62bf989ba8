package console

import (
	"context"
	"log/slog"
	"strings"
)

// captureHandler passes records through to next and captures them.
type captureHandler struct {
	next  slog.Handler
	ic    *Interceptor
	attrs []slog.Attr
	group string // dotted prefix for attribute keys
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.next.Handle(ctx, r)
	h.ic.Record(levelFromSlog(r.Level), h.format(r))
	return err
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		merged = append(merged, slog.Attr{Key: h.group + a.Key, Value: a.Value})
	}
	return &captureHandler{next: h.next.WithAttrs(attrs), ic: h.ic, attrs: merged, group: h.group}
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &captureHandler{next: h.next.WithGroup(name), ic: h.ic, attrs: h.attrs, group: h.group + name + "."}
}

// format renders "msg k=v k=v" from the handler and record attributes.
func (h *captureHandler) format(r slog.Record) string {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		writeAttr(&b, a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.group+a.Key, a.Value)
		return true
	})
	return b.String()
}

func writeAttr(b *strings.Builder, key string, v slog.Value) {
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(v.Resolve().String())
}

func levelFromSlog(l slog.Level) Level {
	switch {
	case l < slog.LevelInfo:
		return LevelDebug
	case l < slog.LevelWarn:
		return LevelInfo
	case l < slog.LevelError:
		return LevelWarn
	default:
		return LevelError
	}
}
