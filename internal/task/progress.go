package task

import (
	"context"
	"time"

	"github.com/phrazzld/chunkgen/internal/selection"
)

// State represents the lifecycle state of a generation task
type State string

// Possible task states
const (
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCancelled State = "cancelled"
	StateCompleted State = "completed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateCancelled || s == StateCompleted
}

// Progress is the persisted snapshot of a task. A record whose State is
// still StateRunning when it is read back was written by a checkpoint of
// a process that did not shut down cleanly.
type Progress struct {
	Region    string    `json:"region"     yaml:"region"`
	CenterX   int64     `json:"center_x"   yaml:"center_x"`
	CenterZ   int64     `json:"center_z"   yaml:"center_z"`
	Radius    int       `json:"radius"     yaml:"radius"`
	Offset    int64     `json:"offset"     yaml:"offset"`
	State     State     `json:"state"      yaml:"state"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Center returns the center cell of the record.
func (p Progress) Center() selection.Coordinate {
	return selection.Coordinate{X: p.CenterX, Z: p.CenterZ}
}

// Total returns the number of cells covered by the record's radius.
func (p Progress) Total() int64 {
	return selection.Total(p.Radius)
}

// Completed reports whether the record has no cells left to generate.
// Completed records must not be resumed.
func (p Progress) Completed() bool {
	return p.Offset >= p.Total()
}

// ProgressStore persists one overwriting Progress record per region.
// Implementations must be safe for concurrent use.
type ProgressStore interface {
	// Save replaces the record for p.Region.
	Save(ctx context.Context, p Progress) error

	// Load returns the record for region, or an error wrapping
	// store.ErrNotFound if there is none.
	Load(ctx context.Context, region string) (Progress, error)

	// Delete removes the record for region. Deleting a missing record is
	// not an error.
	Delete(ctx context.Context, region string) error

	// LoadAll returns every record ordered by region.
	LoadAll(ctx context.Context) ([]Progress, error)
}

// Generator performs the unit of work for a single cell. It may be slow
// and it may fail; a task never retries a failed cell.
type Generator interface {
	Generate(ctx context.Context, region string, cell selection.Coordinate) error
}

// GeneratorFunc adapts an ordinary function to a Generator.
type GeneratorFunc func(ctx context.Context, region string, cell selection.Coordinate) error

// Generate calls f(ctx, region, cell).
func (f GeneratorFunc) Generate(ctx context.Context, region string, cell selection.Coordinate) error {
	return f(ctx, region, cell)
}
