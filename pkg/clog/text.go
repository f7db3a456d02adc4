package clog

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// leadingKeys are printed inline before the message instead of on their own lines.
var leadingKeys = []string{"http.method", "http.path", "http.status", BatchIDAttributeKey, RecordIDAttributeKey}

var levelColors = map[slog.Level]color.Attribute{
	slog.LevelDebug: color.FgCyan,
	slog.LevelInfo:  color.FgBlue,
	slog.LevelWarn:  color.FgYellow,
	slog.LevelError: color.FgRed,
}

// TextHandler is a human-oriented slog handler for local runs. Groups are
// flattened into dotted keys.
type TextHandler struct {
	cfg    TextHandlerConfig
	prefix string
	attrs  []slog.Attr
	mu     *sync.Mutex
	w      io.Writer
}

type TextHandlerConfig struct {
	Color bool
	Level *slog.Level
}

type TextHandlerOption func(*TextHandlerConfig)

func WithColor(c bool) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Color = c
	}
}

func WithLevel(level slog.Level) TextHandlerOption {
	return func(cfg *TextHandlerConfig) {
		cfg.Level = &level
	}
}

func NewTextHandler(w io.Writer, opts ...TextHandlerOption) *TextHandler {
	cfg := TextHandlerConfig{Color: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &TextHandler{cfg: cfg, mu: &sync.Mutex{}, w: w}
}

func (h *TextHandler) Enabled(_ context.Context, l slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.cfg.Level != nil {
		minLevel = *h.cfg.Level
	}
	return l >= minLevel
}

func (h *TextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func (h *TextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		nh.attrs = append(nh.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &nh
}

func (h *TextHandler) paint(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if h.cfg.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

func (h *TextHandler) Handle(_ context.Context, record slog.Record) error {
	kv := map[string]slog.Value{}
	for _, a := range h.attrs {
		flatten(kv, "", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		flatten(kv, h.prefix, a)
		return true
	})

	var buf bytes.Buffer
	buf.WriteString(record.Time.Format(time.RFC3339) + " ")
	levelColor, ok := levelColors[record.Level]
	if !ok {
		levelColor = color.Reset
	}
	h.paint(levelColor).Fprintf(&buf, "%s ", record.Level)
	for _, key := range leadingKeys {
		if v, ok := kv[key]; ok {
			buf.WriteString(v.String() + " ")
			delete(kv, key)
		}
	}
	h.paint(color.FgGreen).Fprint(&buf, record.Message)
	if e, ok := kv[ErrorAttributeKey]; ok {
		delete(kv, ErrorAttributeKey)
		h.paint(color.FgRed).Fprintf(&buf, " %s", e)
	}
	buf.WriteByte('\n')

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		v := kv[k].String()
		if strings.Contains(v, "\n") {
			v = strings.ReplaceAll(strings.TrimRight(v, "\n"), "\n", "\n      ")
		}
		buf.WriteString("    " + k + "=" + v + "\n")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

func flatten(kv map[string]slog.Value, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		kv[prefix+a.Key] = v
		return
	}
	p := prefix
	if a.Key != "" {
		p += a.Key + "."
	}
	for _, ga := range v.Group() {
		flatten(kv, p, ga)
	}
}
