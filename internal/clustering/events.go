package clustering

import (
	"context"

	"github.com/lanefield/brag/pkg/models"
)

// EventType discriminates the records on the progress stream.
type EventType string

const (
	// EventProgress marks a phase transition during a run.
	EventProgress EventType = "progress"
	// EventComplete carries the full structured result and terminates the
	// stream.
	EventComplete EventType = "complete"
	// EventError carries a failure message and terminates the stream.
	EventError EventType = "error"
)

// Event is one record on the progress stream. Each event is independently
// parseable; exactly one complete or error event ends a stream.
type Event struct {
	Type    EventType `json:"type"`
	Phase   string    `json:"phase,omitempty"`
	Message string    `json:"message,omitempty"`
	Result  *Outcome  `json:"result,omitempty"`
}

// Sink receives events from a running clustering pass. The transport layer
// owns the wire format; the algorithms only know this one operation. Emit
// returns an error when the consumer is gone, which the algorithms treat as
// a cancellation signal.
type Sink interface {
	Emit(ctx context.Context, ev Event) error
}

// NopSink discards all events. Useful for background runs and tests.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(context.Context, Event) error { return nil }

func emitProgress(ctx context.Context, sink Sink, phase, message string) error {
	return sink.Emit(ctx, Event{Type: EventProgress, Phase: phase, Message: message})
}

// Outcome is the tagged result of a generation run: Strategy names the pass
// that ran, and exactly one of Full or Incremental is set.
type Outcome struct {
	Strategy            Strategy            `json:"strategy"`
	Reason              string              `json:"reason"`
	EmbeddingsCompleted int                 `json:"embeddingsCompleted"`
	Full                *FullOutcome        `json:"full,omitempty"`
	Incremental         *IncrementalOutcome `json:"incremental,omitempty"`
}

// WorkstreamSummary describes one workstream's membership after a run.
type WorkstreamSummary struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Color          string  `json:"color"`
	Reused         bool    `json:"reused"`
	AchievementIDs []int64 `json:"achievementIds"`
}

// FullOutcome is the result of a full re-clustering pass.
type FullOutcome struct {
	WorkstreamsCreated         int                  `json:"workstreamsCreated"`
	WorkstreamsReused          int                  `json:"workstreamsReused"`
	Assigned                   int                  `json:"assigned"`
	Outliers                   int                  `json:"outliers"`
	AutoAssignedOutsideFilters int                  `json:"autoAssignedOutsideFilters"`
	Workstreams                []WorkstreamSummary   `json:"workstreams"`
	Metadata                   *models.ClusteringRun `json:"metadata"`
}

// Assignment records one achievement placed into an existing workstream.
type Assignment struct {
	AchievementID  int64   `json:"achievementId"`
	WorkstreamID   int64   `json:"workstreamId"`
	WorkstreamName string  `json:"workstreamName"`
	Similarity     float64 `json:"similarity"`
}

// IncrementalOutcome is the result of an incremental assignment pass.
type IncrementalOutcome struct {
	Assigned   []Assignment `json:"assigned"`
	Unassigned []int64      `json:"unassigned"`
}
