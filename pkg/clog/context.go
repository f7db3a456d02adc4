package clog

import (
	"context"
	"sync"
)

// attrBag holds the attributes collected over one request or job. Nested
// maps merge key by key.
type attrBag struct {
	mu    sync.RWMutex
	attrs map[string]any
}

type attrBagKey struct{}

// ContextWithSlog returns a context that collects log attributes. Without
// it the Add functions do nothing.
func ContextWithSlog(ctx context.Context) context.Context {
	return context.WithValue(ctx, attrBagKey{}, &attrBag{attrs: map[string]any{}})
}

func bagFrom(ctx context.Context) *attrBag {
	b, _ := ctx.Value(attrBagKey{}).(*attrBag)
	return b
}

func AddAttribute(ctx context.Context, key string, value any) {
	AddAttributes(ctx, map[string]any{key: value})
}

func AddAttributes(ctx context.Context, attributes map[string]any) {
	b := bagFrom(ctx)
	if b == nil {
		return
	}
	b.mu.Lock()
	merge(b.attrs, attributes)
	b.mu.Unlock()
}

// GetAttribute returns the attribute under key, or the zero value when it
// is missing or of another type.
func GetAttribute[T any](ctx context.Context, key string) T {
	var zero T
	b := bagFrom(ctx)
	if b == nil {
		return zero
	}
	b.mu.RLock()
	v, ok := b.attrs[key].(T)
	b.mu.RUnlock()
	if !ok {
		return zero
	}
	return v
}

// GetAttributes returns a copy of every attribute, nested maps included.
func GetAttributes(ctx context.Context) map[string]any {
	b := bagFrom(ctx)
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return deepCopy(b.attrs)
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		sub, ok := v.(map[string]any)
		if !ok {
			dst[k] = v
			continue
		}
		if existing, ok := dst[k].(map[string]any); ok {
			merge(existing, sub)
			continue
		}
		dst[k] = deepCopy(sub)
	}
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			v = deepCopy(sub)
		}
		out[k] = v
	}
	return out
}

const (
	ErrorAttributeKey    = "error.message"
	StackAttributeKey    = "error.stack"
	RecordIDAttributeKey = "record_id"
	BatchIDAttributeKey  = "batch_id"
)

// AddRecordID tags every later log line of ctx with the record being written.
func AddRecordID(ctx context.Context, id string) {
	AddAttribute(ctx, RecordIDAttributeKey, id)
}

func AddBatchID(ctx context.Context, id string) {
	AddAttribute(ctx, BatchIDAttributeKey, id)
}

func AddError(ctx context.Context, err error) {
	AddAttribute(ctx, ErrorAttributeKey, err)
}

func GetError(ctx context.Context) error {
	return GetAttribute[error](ctx, ErrorAttributeKey)
}

func AddStack(ctx context.Context, stack string) {
	AddAttribute(ctx, StackAttributeKey, stack)
}

func GetStack(ctx context.Context) string {
	return GetAttribute[string](ctx, StackAttributeKey)
}
