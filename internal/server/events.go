package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kazz187/taskgantt/internal/eventbus"
)

const eventBufferSize = 64

// streamEvents sends bus events as server-sent events until the client
// goes away. ?types=a,b limits the stream to those event types.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var types []eventbus.EventType
	for _, t := range strings.Split(r.URL.Query().Get("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, eventbus.EventType(t))
		}
	}
	sub := s.bus.Subscribe(eventBufferSize, types...)
	defer func() {
		sub.Close()
		if n := sub.Dropped(); n > 0 {
			slog.WarnContext(ctx, "event stream missed events", "subscription_id", sub.ID, "dropped", n)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				slog.ErrorContext(ctx, "failed to encode event", "event_id", event.ID, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
