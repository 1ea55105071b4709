package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/phrazzld/chunkgen/internal/events"
	"github.com/phrazzld/chunkgen/internal/selection"
	"github.com/phrazzld/chunkgen/internal/store"
	"golang.org/x/sync/errgroup"
)

// Params are the arguments of a start request.
type Params struct {
	Region  string
	CenterX int64
	CenterZ int64

	// Radius is measured in cells
	Radius int

	// Quiet is the minimum time between two cells. Zero means unthrottled.
	Quiet time.Duration

	// Skip is the number of leading cells of the selection to skip
	Skip int64
}

// Center returns the center cell.
func (p Params) Center() selection.Coordinate {
	return selection.Coordinate{X: p.CenterX, Z: p.CenterZ}
}

// Validate checks that the parameters can start a task.
func (p Params) Validate() error {
	switch {
	case p.Region == "":
		return fmt.Errorf("%w: region must not be empty", ErrInvalidParameter)
	case p.Radius < 0:
		return fmt.Errorf("%w: radius must not be negative, got %d", ErrInvalidParameter, p.Radius)
	case p.Radius > selection.MaxRadius:
		return fmt.Errorf("%w: radius must not exceed %d, got %d", ErrInvalidParameter, selection.MaxRadius, p.Radius)
	case p.Quiet < 0:
		return fmt.Errorf("%w: quiet interval must not be negative, got %s", ErrInvalidParameter, p.Quiet)
	case p.Skip < 0:
		return fmt.Errorf("%w: skip must not be negative, got %d", ErrInvalidParameter, p.Skip)
	}
	return nil
}

// Result is the outcome of a set-wide operation for one region.
type Result struct {
	Region string
	Err    error
}

// Manager owns the tasks of a process. It holds the default parameters
// used by the next Start and routes every operation through the
// Registry so that each region has at most one active task.
type Manager struct {
	store    ProgressStore
	registry *Registry
	deps     taskDeps
	logger   *slog.Logger

	// ctx outlives individual requests; tasks run under it
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	defaults Params
	silent   atomic.Bool
}

// NewManager creates a Manager. A nil emitter discards progress events.
func NewManager(
	progressStore ProgressStore,
	gen Generator,
	emitter events.EventEmitter,
	defaults Params,
	config Config,
	logger *slog.Logger,
) (*Manager, error) {
	if progressStore == nil {
		return nil, errors.New("progress store cannot be nil")
	}
	if gen == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	defaults.Skip = 0
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("invalid defaults: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		store:    progressStore,
		registry: NewRegistry(),
		logger:   logger.With("component", "task_manager"),
		ctx:      ctx,
		cancel:   cancel,
		defaults: defaults,
	}
	m.deps = taskDeps{
		gen:     gen,
		store:   progressStore,
		emitter: emitter,
		config:  config,
		logger:  logger,
		onExit: func(t *GenTask) {
			m.registry.Unregister(t.Region())
		},
	}
	return m, nil
}

// Start starts a task with the default parameters and returns them. A
// pending skip is consumed by a successful start.
func (m *Manager) Start(ctx context.Context) (Params, error) {
	p := m.Defaults()
	if err := m.StartWith(ctx, p); err != nil {
		return p, err
	}

	m.mu.Lock()
	m.defaults.Skip = 0
	m.mu.Unlock()
	return p, nil
}

// StartWith starts a task for p.Region. It fails with ErrAlreadyRunning
// if the region already has an active task.
func (m *Manager) StartWith(ctx context.Context, p Params) error {
	if err := p.Validate(); err != nil {
		return err
	}

	sel, err := selection.New(p.Center(), p.Radius, 0)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParameter, err)
	}
	sel.Skip(p.Skip)

	return m.launch(ctx, p.Region, sel, p.Quiet)
}

// launch registers a task for sel, saves its initial record and starts
// its pull loop.
func (m *Manager) launch(ctx context.Context, region string, sel *selection.Selection, quiet time.Duration) error {
	t := newGenTask(region, sel, quiet, m.deps)
	if err := m.registry.Register(region, t); err != nil {
		return err
	}

	if err := m.store.Save(ctx, t.snapshot(StateRunning)); err != nil {
		t.abort()
		m.registry.Unregister(region)
		return fmt.Errorf("%w: saving %s: %w", ErrPersistence, region, err)
	}

	m.logger.Info("starting generation task",
		"task_id", t.ID(),
		"region", region,
		"center", sel.Center().String(),
		"radius", sel.Radius(),
		"offset", sel.Offset(),
		"total", sel.Total())

	t.emit(ctx, events.KindStarted)
	t.launch(m.ctx)
	return nil
}

// Pause pauses the active task of region.
func (m *Manager) Pause(ctx context.Context, region string) error {
	t, ok := m.registry.Get(region)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, region)
	}
	return t.Pause(ctx)
}

// PauseAll pauses every active task.
func (m *Manager) PauseAll(ctx context.Context) []Result {
	tasks := m.registry.List()
	results := make([]Result, 0, len(tasks))
	for _, t := range tasks {
		results = append(results, Result{Region: t.Region(), Err: t.Pause(ctx)})
	}
	return results
}

// Continue resumes region from its persisted progress. It fails with
// ErrAlreadyRunning if the region has an active task and with
// ErrNothingToResume if there is no record or the record is complete.
// Completed records are deleted.
func (m *Manager) Continue(ctx context.Context, region string) error {
	if _, ok := m.registry.Get(region); ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, region)
	}

	rec, err := m.store.Load(ctx, region)
	if err != nil {
		if store.IsNotFoundError(err) {
			return fmt.Errorf("%w: %s", ErrNothingToResume, region)
		}
		return fmt.Errorf("%w: loading %s: %w", ErrPersistence, region, err)
	}
	return m.resume(ctx, rec)
}

// ContinueAll resumes every persisted record whose region is idle.
func (m *Manager) ContinueAll(ctx context.Context) ([]Result, error) {
	records, err := m.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading records: %w", ErrPersistence, err)
	}

	results := make([]Result, 0, len(records))
	for _, rec := range records {
		var err error
		if _, ok := m.registry.Get(rec.Region); ok {
			err = fmt.Errorf("%w: %s", ErrAlreadyRunning, rec.Region)
		} else {
			err = m.resume(ctx, rec)
		}
		results = append(results, Result{Region: rec.Region, Err: err})
	}
	return results, nil
}

func (m *Manager) resume(ctx context.Context, rec Progress) error {
	if rec.Completed() {
		if err := m.store.Delete(ctx, rec.Region); err != nil {
			m.logger.Warn("failed to delete completed progress record",
				"region", rec.Region,
				"error", err)
		}
		return fmt.Errorf("%w: %s is already complete", ErrNothingToResume, rec.Region)
	}

	sel, err := selection.New(rec.Center(), rec.Radius, rec.Offset)
	if err != nil {
		return fmt.Errorf("%w: unusable record for %s: %w", ErrNothingToResume, rec.Region, err)
	}

	if rec.State == StateRunning {
		m.logger.Info("recovering interrupted task", "region", rec.Region, "offset", rec.Offset)
	}
	return m.launch(ctx, rec.Region, sel, m.Defaults().Quiet)
}

// Cancel stops the active task of region, if any, and deletes its
// persisted progress. Cancelling an idle region only deletes the record,
// so repeated cancels leave the same end state.
func (m *Manager) Cancel(ctx context.Context, region string) error {
	if t, ok := m.registry.Get(region); ok {
		err := t.Cancel(ctx)
		if !errors.Is(err, ErrNotRunning) {
			return err
		}
	}

	if err := m.store.Delete(ctx, region); err != nil {
		return fmt.Errorf("%w: deleting %s: %w", ErrPersistence, region, err)
	}
	return nil
}

// CancelAll cancels every active task and deletes every persisted record.
func (m *Manager) CancelAll(ctx context.Context) ([]Result, error) {
	tasks := m.registry.List()
	results := make([]Result, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		seen[t.Region()] = true
		results = append(results, Result{Region: t.Region(), Err: m.Cancel(ctx, t.Region())})
	}

	records, err := m.store.LoadAll(ctx)
	if err != nil {
		return results, fmt.Errorf("%w: loading records: %w", ErrPersistence, err)
	}
	for _, rec := range records {
		if seen[rec.Region] {
			continue
		}
		results = append(results, Result{Region: rec.Region, Err: m.Cancel(ctx, rec.Region)})
	}
	return results, nil
}

// Skip converts a linear block distance into a cell count with
// selection.SkipCount and adds it to the skip applied by the next Start.
// It returns the number of cells added.
func (m *Manager) Skip(distance int64) (int64, error) {
	if distance < 0 {
		return 0, fmt.Errorf("%w: skip distance must not be negative, got %d", ErrInvalidParameter, distance)
	}
	n := selection.SkipCount(distance)

	m.mu.Lock()
	if n > math.MaxInt64-m.defaults.Skip {
		m.defaults.Skip = math.MaxInt64
	} else {
		m.defaults.Skip += n
	}
	m.mu.Unlock()
	return n, nil
}

// SetQuiet sets the pacing interval, in seconds, of subsequently started
// or continued tasks.
func (m *Manager) SetQuiet(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: quiet interval must not be negative, got %d", ErrInvalidParameter, seconds)
	}

	m.mu.Lock()
	m.defaults.Quiet = time.Duration(seconds) * time.Second
	m.mu.Unlock()
	return nil
}

// SetRadius sets the radius, in cells, of the next start.
func (m *Manager) SetRadius(radius int) error {
	if radius < 0 {
		return fmt.Errorf("%w: radius must not be negative, got %d", ErrInvalidParameter, radius)
	}
	if radius > selection.MaxRadius {
		return fmt.Errorf("%w: radius must not exceed %d, got %d", ErrInvalidParameter, selection.MaxRadius, radius)
	}

	m.mu.Lock()
	m.defaults.Radius = radius
	m.mu.Unlock()
	return nil
}

// SetCenter sets the center cell of the next start.
func (m *Manager) SetCenter(x, z int64) {
	m.mu.Lock()
	m.defaults.CenterX = x
	m.defaults.CenterZ = z
	m.mu.Unlock()
}

// SetRegion sets the region of the next start. Callers resolve user
// input to a region name first.
func (m *Manager) SetRegion(region string) error {
	if region == "" {
		return fmt.Errorf("%w: region must not be empty", ErrInvalidParameter)
	}

	m.mu.Lock()
	m.defaults.Region = region
	m.mu.Unlock()
	return nil
}

// Defaults returns the parameters of the next start.
func (m *Manager) Defaults() Params {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaults
}

// ToggleSilent flips silent mode and returns the new value.
func (m *Manager) ToggleSilent() bool {
	for {
		old := m.silent.Load()
		if m.silent.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// SetSilent sets silent mode.
func (m *Manager) SetSilent(silent bool) {
	m.silent.Store(silent)
}

// Silent reports whether progress messages are suppressed.
func (m *Manager) Silent() bool {
	return m.silent.Load()
}

// Task returns the active task of region.
func (m *Manager) Task(region string) (*GenTask, bool) {
	return m.registry.Get(region)
}

// Status returns a snapshot of every active task ordered by region.
func (m *Manager) Status() []Status {
	tasks := m.registry.List()
	statuses := make([]Status, 0, len(tasks))
	for _, t := range tasks {
		statuses = append(statuses, t.Status())
	}
	return statuses
}

// Saved returns every persisted progress record.
func (m *Manager) Saved(ctx context.Context) ([]Progress, error) {
	records, err := m.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: loading records: %w", ErrPersistence, err)
	}
	return records, nil
}

// Shutdown pauses every active task in parallel, then stops whatever is
// still running. Progress of a task whose pause failed is only as recent
// as its last checkpoint.
func (m *Manager) Shutdown(ctx context.Context) error {
	tasks := m.registry.List()
	m.logger.Info("shutting down task manager", "active_tasks", len(tasks))

	var g errgroup.Group
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			if err := t.Pause(ctx); err != nil && !errors.Is(err, ErrNotRunning) {
				return err
			}
			return nil
		})
	}
	err := g.Wait()

	m.cancel()
	return err
}
