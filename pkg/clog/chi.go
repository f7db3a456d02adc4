package clog

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type chiConfig struct {
	filter func(r *http.Request) bool
	slow   time.Duration
}

type ChiOption func(*chiConfig)

// WithChiFilter logs only the requests filter accepts.
func WithChiFilter(filter func(r *http.Request) bool) ChiOption {
	return func(c *chiConfig) { c.filter = filter }
}

// WithSlowRequest logs successful requests slower than d as warnings.
func WithSlowRequest(d time.Duration) ChiOption {
	return func(c *chiConfig) { c.slow = d }
}

// SlogChiMiddleware gives every request a context for attributes (see
// AddAttributes) and writes one log line per request when it ends. The
// line carries the chi request ID when middleware.RequestID runs first.
func SlogChiMiddleware(opts ...ChiOption) func(http.Handler) http.Handler {
	var cfg chiConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ctx := ContextWithSlog(r.Context())
			AddAttributes(ctx, map[string]any{
				"http": map[string]any{
					"method": r.Method,
					"path":   r.URL.Path,
					"proto":  r.Proto,
				},
			})
			if id := middleware.GetReqID(ctx); id != "" {
				AddAttribute(ctx, "request_id", id)
			}

			next.ServeHTTP(ww, r.WithContext(ctx))

			if cfg.filter != nil && !cfg.filter(r) {
				return
			}
			elapsed := time.Since(start)
			AddAttributes(ctx, map[string]any{
				"http": map[string]any{
					"status":        ww.Status(),
					"bytes_written": ww.BytesWritten(),
					"duration":      elapsed,
				},
			})
			level := HTTPStatusToLevel(ww.Status())
			if level == LevelInfo && cfg.slow > 0 && elapsed > cfg.slow {
				level = LevelWarn
			}
			slog.Log(ctx, level.Slog(), http.StatusText(ww.Status()))
		})
	}
}
