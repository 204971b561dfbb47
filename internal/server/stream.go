package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lanefield/brag/internal/clustering"
)

// EventStream writes clustering events to a single HTTP response as
// Server-Sent Events. One producer, one consumer, no fan-out: the stream
// belongs to exactly one generation request and is closed when the handler
// returns.
type EventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// OpenEventStream sets SSE headers and returns a stream. Must only be
// called after validation and the metering gate have passed, because the
// response status cannot change once the stream is open.
func OpenEventStream(w http.ResponseWriter) (*EventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &EventStream{w: w, flusher: flusher}, nil
}

// Emit writes one event record. Implements clustering.Sink. Returns an
// error when the client has disconnected, which the algorithms treat as a
// cooperative cancellation point.
func (s *EventStream) Emit(ctx context.Context, ev clustering.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
