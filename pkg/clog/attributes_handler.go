package clog

import (
	"context"
	"log/slog"
	"sort"
	"strings"
)

// AttributesHandler adds the attributes collected in the context (see
// ContextWithSlog) to every record. Dotted keys such as "error.message"
// become groups, so "error.message" and "error.stack" share an "error"
// group.
type AttributesHandler struct {
	handler slog.Handler
}

func NewAttributesHandler(handler slog.Handler) *AttributesHandler {
	return &AttributesHandler{handler: handler}
}

func (h *AttributesHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *AttributesHandler) Handle(ctx context.Context, record slog.Record) error {
	if attrs := GetAttributes(ctx); len(attrs) > 0 {
		record.AddAttrs(mapToAttrs(attrs)...)
	}
	return h.handler.Handle(ctx, record)
}

func (h *AttributesHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AttributesHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *AttributesHandler) WithGroup(name string) slog.Handler {
	return &AttributesHandler{handler: h.handler.WithGroup(name)}
}

// mapToAttrs returns attributes in key order.
func mapToAttrs(m map[string]any) []slog.Attr {
	nested := map[string]any{}
	for k, v := range m {
		insert(nested, strings.Split(k, "."), v)
	}
	return toAttrs(nested)
}

func insert(m map[string]any, path []string, v any) {
	if len(path) == 1 {
		if sub, ok := v.(map[string]any); ok {
			dst, ok := m[path[0]].(map[string]any)
			if !ok {
				dst = map[string]any{}
				m[path[0]] = dst
			}
			for k, sv := range sub {
				insert(dst, strings.Split(k, "."), sv)
			}
			return
		}
		m[path[0]] = v
		return
	}
	sub, ok := m[path[0]].(map[string]any)
	if !ok {
		sub = map[string]any{}
		m[path[0]] = sub
	}
	insert(sub, path[1:], v)
}

func toAttrs(m map[string]any) []slog.Attr {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		if sub, ok := m[k].(map[string]any); ok {
			attrs = append(attrs, slog.Attr{Key: k, Value: slog.GroupValue(toAttrs(sub)...)})
			continue
		}
		attrs = append(attrs, slog.Any(k, m[k]))
	}
	return attrs
}
