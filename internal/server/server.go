package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/taskgantt/internal/config"
	"github.com/kazz187/taskgantt/internal/eventbus"
	"github.com/kazz187/taskgantt/internal/view"
	"github.com/kazz187/taskgantt/pkg/cerr"
	"github.com/kazz187/taskgantt/pkg/clog"
)

// Requests slower than this are logged as warnings.
const slowRequest = 2 * time.Second

type Server struct {
	server   *http.Server
	env      *config.BaseEnv
	view     *view.Controller
	snapshot *view.Snapshot
	bus      *eventbus.Bus
}

func NewServer(env *config.BaseEnv, controller *view.Controller, snapshot *view.Snapshot, bus *eventbus.Bus) *Server {
	return &Server{
		env:      env,
		view:     controller,
		snapshot: snapshot,
		bus:      bus,
	}
}

// Handler returns the full HTTP handler: the JSON API, the event stream and
// the health endpoints behind CORS and the API key check.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(clog.SlogChiMiddleware(
			clog.WithChiFilter(func(r *http.Request) bool {
				return r.URL.Path != "/api/events"
			}),
			clog.WithSlowRequest(slowRequest),
		))
		r.Get("/events", s.streamEvents)

		r.Group(func(r chi.Router) {
			r.Use(cerr.NewJSONResponseChiMiddleware())
			r.Get("/view", s.getView)
			r.Get("/rights", s.getRights)
			r.Get("/tasks", s.listTasks)
			r.Post("/tasks/{id}/dates", s.changeDates)
			r.Post("/flush", s.flush)
			r.Get("/records/defaults", s.recordDefaults)
			r.Post("/records", s.createRecord)
			r.Delete("/records/{id}", s.deleteRecord)
			r.NotFound(func(w http.ResponseWriter, r *http.Request) {
				cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
			})
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)
	mux.Handle(grpchealth.NewHandler(grpchealth.NewStaticChecker()))

	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.apiKeyMiddleware(mux))
}

// ListenAndServe starts the HTTP server. ctx is the base context of every
// request, so cancelling it also ends open event streams.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     h2c.NewHandler(s.Handler(), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Skip API key check for health endpoints.
		if r.URL.Path == "/health" || r.URL.Path == "/grpc.health.v1.Health/Check" {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if apiKey == "" {
			// EventSource cannot set headers.
			apiKey = r.URL.Query().Get("api_key")
		}
		if apiKey != s.env.APIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
