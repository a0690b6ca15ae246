package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/quillscribe/taskcore/internal/api/shared"
	"github.com/quillscribe/taskcore/internal/events"
)

// EventsHandler streams task lifecycle events to HTTP clients as Server-Sent
// Events.
type EventsHandler struct {
	bus    *events.Bus
	buffer int
	logger *slog.Logger
}

// NewEventsHandler creates an EventsHandler reading from bus with the given
// per-subscriber buffer.
func NewEventsHandler(bus *events.Bus, buffer int, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		bus:    bus,
		buffer: buffer,
		logger: logger.With("component", "events_handler"),
	}
}

// StreamEvents handles GET /api/events. The optional origin query parameter
// narrows the stream to events routed to that origin (plus broadcasts); no
// parameter subscribes to everything. The stream stays open until the client
// disconnects.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	origin := r.URL.Query().Get("origin")
	ch, unsubscribe := h.bus.Subscribe(origin, h.buffer)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.logger.Debug("event stream opened",
		"origin", origin,
		"remote_addr", r.RemoteAddr)

	for {
		select {
		case <-r.Context().Done():
			h.logger.Debug("event stream closed by client", "origin", origin)
			return
		case ev, open := <-ch:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("failed to marshal event", "error", err, "event_type", ev.Type)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				h.logger.Debug("event stream write failed", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
