package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vusociu/datn/internal/broadcast"
	"github.com/vusociu/datn/internal/constants"
	"github.com/vusociu/datn/internal/protocol"
)

// ActivityEvent is one outbound locker event as shown on the activity feed.
type ActivityEvent struct {
	ID    string         `json:"id"`
	Time  time.Time      `json:"time"`
	Event protocol.Event `json:"event"`
}

// EventFeed records outbound locker events for SSE clients. It is a
// locker.Publisher so the engine can fan events out to it.
type EventFeed struct {
	events *broadcast.Broadcaster[ActivityEvent]
	now    func() time.Time
}

// NewEventFeed creates an empty feed.
func NewEventFeed() *EventFeed {
	return &EventFeed{
		events: broadcast.New[ActivityEvent](constants.EventChannelBuffer),
		now:    time.Now,
	}
}

// Publish adds ev to the feed.
func (f *EventFeed) Publish(_ context.Context, ev protocol.Event) error {
	f.events.Send(ActivityEvent{ID: uuid.NewString(), Time: f.now(), Event: ev})
	return nil
}

// Close ends every open stream.
func (f *EventFeed) Close() {
	f.events.Close()
}

// Events handles GET /api/v1/events, streaming the feed as server-sent events.
func (f *EventFeed) Events(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch := f.events.AddListener()
	defer f.events.RemoveListener(ch)

	last, hasLast := f.events.Last()
	sendSSEEvent(w, flusher, "connected", map[string]any{"last": lastOrNil(last, hasLast)})

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, ev.Event.Kind.String(), ev)
		}
	}
}

func lastOrNil(ev ActivityEvent, ok bool) any {
	if !ok {
		return nil
	}
	return ev
}

// sendSSEEvent writes one server-sent event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	jsonData, _ := json.Marshal(data)
	_, _ = io.WriteString(w, "event: "+eventType+"\n")
	_, _ = io.WriteString(w, "data: ")
	_, _ = io.Copy(w, bytes.NewReader(jsonData))
	_, _ = io.WriteString(w, "\n\n")
	flusher.Flush()
}
