package clog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes(t *testing.T) {
	ctx := ContextWithSlog(context.Background())
	AddRecordID(ctx, "42")
	AddBatchID(ctx, "b1")
	AddAttributes(ctx, map[string]any{"http": map[string]any{"method": "GET"}})
	AddAttributes(ctx, map[string]any{"http": map[string]any{"status": 200}})

	assert.Equal(t, "42", GetAttribute[string](ctx, RecordIDAttributeKey))
	assert.Equal(t, 0, GetAttribute[int](ctx, RecordIDAttributeKey))
	assert.Equal(t, map[string]any{
		RecordIDAttributeKey: "42",
		BatchIDAttributeKey:  "b1",
		"http":               map[string]any{"method": "GET", "status": 200},
	}, GetAttributes(ctx))

	// Without ContextWithSlog every call is a no-op.
	plain := context.Background()
	AddRecordID(plain, "42")
	assert.Nil(t, GetAttributes(plain))
	assert.Empty(t, GetAttribute[string](plain, RecordIDAttributeKey))
}

func TestAttributesHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewAttributesHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := ContextWithSlog(context.Background())
	AddRecordID(ctx, "42")
	logger.InfoContext(ctx, "record written")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "record written", line["msg"])
	assert.Equal(t, "42", line[RecordIDAttributeKey])
}

func TestAttributesHandler_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewAttributesHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := ContextWithSlog(context.Background())
	AddError(ctx, errors.New("disk full"))
	AddStack(ctx, "goroutine 1")
	AddAttributes(ctx, map[string]any{"http": map[string]any{"path": "/api/flush"}})
	logger.ErrorContext(ctx, "write failed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, map[string]any{"message": "disk full", "stack": "goroutine 1"}, line["error"])
	assert.Equal(t, map[string]any{"path": "/api/flush"}, line["http"])
}

func TestMapToAttrs_Order(t *testing.T) {
	attrs := mapToAttrs(map[string]any{"b": 1, "a.y": 2, "a.x": 3})
	require.Len(t, attrs, 2)
	assert.Equal(t, "a", attrs[0].Key)
	assert.Equal(t, "b", attrs[1].Key)
	group := attrs[0].Value.Group()
	require.Len(t, group, 2)
	assert.Equal(t, "x", group[0].Key)
	assert.Equal(t, "y", group[1].Key)
}

func TestTextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewAttributesHandler(NewTextHandler(&buf, WithColor(false), WithLevel(slog.LevelDebug))))

	ctx := ContextWithSlog(context.Background())
	AddRecordID(ctx, "42")
	AddError(ctx, errors.New("conflict"))
	AddAttributes(ctx, map[string]any{"http": map[string]any{"method": "POST", "path": "/api/flush", "status": 409}})
	logger.With("component", "reconciler").WarnContext(ctx, "Conflict", "attempt", 2)

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	head := lines[0][strings.Index(lines[0], " ")+1:]
	assert.Equal(t, "WARN POST /api/flush 409 42 Conflict conflict", head)
	assert.Equal(t, "    attempt=2", lines[1])
	assert.Equal(t, "    component=reconciler", lines[2])

	buf.Reset()
	slog.New(NewTextHandler(&buf, WithColor(false))).Debug("hidden")
	assert.Empty(t, buf.String())
}

func TestSlogChiMiddleware(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(NewAttributesHandler(slog.NewJSONHandler(&buf, nil))))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := SlogChiMiddleware(WithChiFilter(func(r *http.Request) bool {
		return r.URL.Path != "/quiet"
	}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AddRecordID(r.Context(), "7")
		w.WriteHeader(http.StatusNotFound)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/quiet", nil))
	assert.Empty(t, buf.String())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tasks", nil))
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "Not Found", line["msg"])
	assert.Equal(t, "7", line[RecordIDAttributeKey])
	httpAttrs, ok := line["http"].(map[string]any)
	require.True(t, ok, "http group missing: %s", buf.String())
	assert.Equal(t, "/api/tasks", httpAttrs["path"])
	assert.Equal(t, "GET", httpAttrs["method"])
	assert.EqualValues(t, 404, httpAttrs["status"])
}

func TestSlogChiMiddleware_SlowRequest(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(NewAttributesHandler(slog.NewJSONHandler(&buf, nil))))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := SlogChiMiddleware(WithSlowRequest(time.Nanosecond))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/view", nil))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "OK", line["msg"])
}

func TestHTTPStatusToLevel(t *testing.T) {
	assert.Equal(t, LevelInfo, HTTPStatusToLevel(http.StatusOK))
	assert.Equal(t, LevelInfo, HTTPStatusToLevel(499))
	assert.Equal(t, LevelWarn, HTTPStatusToLevel(http.StatusBadRequest))
	assert.Equal(t, LevelError, HTTPStatusToLevel(http.StatusInternalServerError))
	assert.Equal(t, LevelError, HTTPStatusToLevel(0))
}
