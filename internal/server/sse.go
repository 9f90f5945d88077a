package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/landscapehq/landscape/internal/events"
	"github.com/landscapehq/landscape/internal/model"
)

// sseKeepaliveInterval is how often keepalive comments are sent to prevent
// connection timeouts on idle streams.
const sseKeepaliveInterval = 15 * time.Second

// handleEventStream handles GET /v1/events/stream (SSE endpoint).
//
// Each event is one `data: <json>` frame mirroring model.Event. There is no
// replay: a reconnecting client gets a fresh subscription and sees only
// events published from that point on. The stream ends when the client
// disconnects or the subscription is evicted for falling behind.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Parse the optional type filter from query params.
	var types []model.EventType
	if q := r.URL.Query().Get("types"); q != "" {
		for _, raw := range strings.Split(q, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			t := model.EventType(raw)
			if !t.IsValid() {
				writeError(w, http.StatusBadRequest, "unknown event type "+raw)
				return
			}
			types = append(types, t)
		}
	}

	sub, err := s.bus.Subscribe(types...)
	if err != nil {
		if errors.Is(err, events.ErrTooManySubscribers) {
			writeError(w, http.StatusServiceUnavailable, "subscriber capacity exceeded")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to subscribe")
		return
	}
	defer s.bus.Unsubscribe(sub.ID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, open := <-sub.C:
			if !open {
				// Evicted: the inbox overflowed and the bus closed it.
				return
			}
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single data-only SSE frame.
func writeSSEEvent(w http.ResponseWriter, evt *model.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
