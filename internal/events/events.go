package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/chunkgen/internal/selection"
)

// Kind describes why a ProgressEvent was emitted.
type Kind string

// Event kinds
const (
	KindStarted   Kind = "started"
	KindProgress  Kind = "progress"
	KindPaused    Kind = "paused"
	KindCancelled Kind = "cancelled"
	KindCompleted Kind = "completed"
)

// ProgressEvent is a point-in-time view of a generation task.
type ProgressEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// TaskID identifies the task run that emitted the event
	TaskID uuid.UUID `json:"task_id"`

	Kind   Kind   `json:"kind"`
	Region string `json:"region"`

	// Offset is the number of cells processed or skipped so far
	Offset int64 `json:"offset"`
	Total  int64 `json:"total"`

	// Failures counts generation calls that returned an error
	Failures int64 `json:"failures"`

	// Current is the most recently processed cell
	Current selection.Coordinate `json:"current"`

	// Rate is the number of cells processed per second during this run
	Rate float64 `json:"rate"`

	// Elapsed is the time since this run started
	Elapsed time.Duration `json:"elapsed"`

	// Error describes a failure to persist the outcome the event reports
	Error string `json:"error,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewProgressEvent creates an event of the given kind for a task.
func NewProgressEvent(kind Kind, taskID uuid.UUID, region string) *ProgressEvent {
	return &ProgressEvent{
		ID:        uuid.New(),
		TaskID:    taskID,
		Kind:      kind,
		Region:    region,
		CreatedAt: time.Now(),
	}
}

// Percent returns the completed share as a percentage.
func (e *ProgressEvent) Percent() float64 {
	if e.Total <= 0 {
		return 0
	}
	return float64(e.Offset) * 100 / float64(e.Total)
}

// ETA estimates the time left at the current rate. It returns zero when
// the rate is unknown.
func (e *ProgressEvent) ETA() time.Duration {
	remaining := e.Total - e.Offset
	if e.Rate <= 0 || remaining <= 0 {
		return 0
	}
	return time.Duration(float64(remaining) / e.Rate * float64(time.Second))
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *ProgressEvent) error
}

// HandlerFunc adapts an ordinary function to an EventHandler.
type HandlerFunc func(ctx context.Context, event *ProgressEvent) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *ProgressEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows tasks to publish progress without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *ProgressEvent) error
}
