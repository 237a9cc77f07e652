package events

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Handler streams broker events to clients over server-sent events.
type Handler struct {
	broker *Broker
}

// NewHTTPHandler wraps the broker with a GET streaming endpoint.
func NewHTTPHandler(broker *Broker) http.Handler {
	return &Handler{broker: broker}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.broker.Subscribe()
	defer h.broker.Unsubscribe(sub)

	for {
		select {
		case event, open := <-sub.Events():
			if !open {
				// Dropped by the broker.
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.SentAt.UnixMilli(), data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
