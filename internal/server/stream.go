package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// EventsHandler serves tracking snapshots as a server-sent event stream.
type EventsHandler struct {
	tracker Tracker
}

// NewEventsHandler creates a new EventsHandler publishing from t.
func NewEventsHandler(t Tracker) *EventsHandler {
	return &EventsHandler{tracker: t}
}

// ServeHTTP streams one "snapshot" event per frame until the client disconnects.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	snapshots, unsubscribe := h.tracker.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-snapshots:
			if !ok {
				return
			}
			data, err := json.Marshal(snap)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\n", snap.Frame)
			fmt.Fprintf(w, "event: snapshot\n")
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
