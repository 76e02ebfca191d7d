package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"
	"github.com/snarg/transcript-editor/internal/transcript"
)

// Event is a transcript change event ready for transmission.
type Event struct {
	ID        string `json:"event_id"`
	Type      string `json:"event_type"`
	Timestamp string `json:"timestamp"`
	WordIDs   []int  `json:"word_ids,omitempty"`
	Data      []byte `json:"-"` // pre-serialized ChangePayload
}

// ChangePayload is the data body of every change event.
type ChangePayload struct {
	Words []transcript.Word `json:"words"`
}

// EventFilter specifies which events a stream subscriber wants to receive.
type EventFilter struct {
	Types   []string
	WordIDs []int
}

// EventSource is the live event feed behind the stream endpoints.
type EventSource interface {
	// Subscribe returns a channel of filtered events and a cancel function.
	Subscribe(filter EventFilter) (<-chan Event, func())

	// ReplaySince returns buffered events since the given event ID (for Last-Event-ID recovery).
	ReplaySince(lastEventID string, filter EventFilter) []Event

	// SubscriberCount returns the number of connected stream clients.
	SubscriberCount() int
}

type EventsHandler struct {
	events EventSource
}

func NewEventsHandler(events EventSource) *EventsHandler {
	return &EventsHandler{events: events}
}

func parseEventFilter(r *http.Request) EventFilter {
	filter := EventFilter{WordIDs: QueryIntList(r, "ids")}
	if v, ok := QueryString(r, "types"); ok {
		filter.Types = strings.Split(v, ",")
	}
	return filter
}

// StreamEvents opens an SSE connection and pushes filtered events.
func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		WriteError(w, http.StatusServiceUnavailable, "event streaming not available")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	log := hlog.FromRequest(r)

	// The server WriteTimeout would otherwise cut the stream.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Warn().Err(err).Msg("could not clear write deadline for SSE stream")
	}

	filter := parseEventFilter(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Subscribe before replaying so nothing published in between is lost.
	ch, cancel := h.events.Subscribe(filter)
	defer cancel()

	if lastEventID := r.Header.Get("Last-Event-ID"); lastEventID != "" {
		for _, e := range h.events.ReplaySince(lastEventID, filter) {
			writeSSE(w, e)
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	log.Info().Msg("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			log.Info().Msg("SSE client disconnected")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			writeSSE(w, event)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, e Event) {
	fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, e.Data)
}
