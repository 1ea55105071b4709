package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/chunkgen/internal/events"
	"github.com/phrazzld/chunkgen/internal/selection"
	"golang.org/x/time/rate"
)

// Config tunes how tasks checkpoint and report progress.
type Config struct {
	// CheckpointEvery is the number of cells between running checkpoints.
	// Zero disables checkpoints.
	CheckpointEvery int64

	// ReportInterval is the minimum time between progress events. Zero
	// emits an event after every cell.
	ReportInterval time.Duration
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		CheckpointEvery: 256,
		ReportInterval:  5 * time.Second,
	}
}

// taskDeps are the collaborators shared by every task of a Manager.
type taskDeps struct {
	gen     Generator
	store   ProgressStore
	emitter events.EventEmitter
	config  Config
	logger  *slog.Logger

	// onExit is called once the task has left StateRunning for good
	onExit func(t *GenTask)
}

// Status is a point-in-time view of a task.
type Status struct {
	TaskID    uuid.UUID
	Region    string
	State     State
	Center    selection.Coordinate
	Radius    int
	Offset    int64
	Total     int64
	Failures  int64
	Current   selection.Coordinate
	Quiet     time.Duration
	Rate      float64
	StartedAt time.Time
}

// GenTask generates every cell of one selection for one region.
//
// The pull loop runs in its own goroutine. It observes cancellation
// before each cell; a Generate call already in flight always completes.
// The offset advances whether or not Generate succeeds: failed cells are
// logged and counted but never retried, so progress can never stall on a
// cell that keeps failing.
type GenTask struct {
	id      uuid.UUID
	region  string
	sel     *selection.Selection
	quiet   time.Duration
	limiter *rate.Limiter
	deps    taskDeps
	logger  *slog.Logger

	// ready is closed once launch or abort has run
	ready chan struct{}

	mu        sync.Mutex
	state     State
	halting   bool
	aborted   bool
	parent    context.Context
	stop      context.CancelFunc
	done      chan struct{}
	startedAt time.Time

	finished   chan struct{}
	finishOnce sync.Once

	processed atomic.Int64
	failures  atomic.Int64
	current   atomic.Pointer[selection.Coordinate]
}

func newGenTask(region string, sel *selection.Selection, quiet time.Duration, deps taskDeps) *GenTask {
	id := uuid.New()
	t := &GenTask{
		id:       id,
		region:   region,
		sel:      sel,
		quiet:    quiet,
		deps:     deps,
		state:    StateRunning,
		ready:    make(chan struct{}),
		finished: make(chan struct{}),
		logger: deps.logger.With(
			"component", "gen_task",
			"task_id", id,
			"region", region,
		),
	}
	if quiet > 0 {
		t.limiter = rate.NewLimiter(rate.Every(quiet), 1)
	}
	return t
}

// ID returns the identifier of this run of the task.
func (t *GenTask) ID() uuid.UUID {
	return t.id
}

// Region returns the region the task generates.
func (t *GenTask) Region() string {
	return t.region
}

// State returns the current state.
func (t *GenTask) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Offset returns the number of cells processed or skipped.
func (t *GenTask) Offset() int64 {
	return t.sel.Offset()
}

// Failures returns the number of cells whose generation failed.
func (t *GenTask) Failures() int64 {
	return t.failures.Load()
}

// Finished is closed once the task has been paused, cancelled or
// completed.
func (t *GenTask) Finished() <-chan struct{} {
	return t.finished
}

// Status returns a snapshot of the task.
func (t *GenTask) Status() Status {
	t.mu.Lock()
	state, startedAt := t.state, t.startedAt
	t.mu.Unlock()

	s := Status{
		TaskID:    t.id,
		Region:    t.region,
		State:     state,
		Center:    t.sel.Center(),
		Radius:    t.sel.Radius(),
		Offset:    t.sel.Offset(),
		Total:     t.sel.Total(),
		Failures:  t.failures.Load(),
		Quiet:     t.quiet,
		Rate:      t.rate(),
		StartedAt: startedAt,
	}
	if c := t.current.Load(); c != nil {
		s.Current = *c
	}
	return s
}

// launch starts the pull loop under ctx.
func (t *GenTask) launch(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.parent = ctx
	t.startLocked()
	close(t.ready)
}

// abort marks a task whose initial record could not be saved. It never
// runs.
func (t *GenTask) abort() {
	t.mu.Lock()
	t.aborted = true
	t.mu.Unlock()
	close(t.ready)
}

// startLocked must be called with t.mu held.
func (t *GenTask) startLocked() {
	ctx, cancel := context.WithCancel(t.parent)
	done := make(chan struct{})
	t.stop = cancel
	t.done = done
	t.halting = false
	if t.startedAt.IsZero() {
		t.startedAt = time.Now()
	}
	go t.run(ctx, done)
}

// run is the pull loop.
func (t *GenTask) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	t.logger.Debug("pull loop started",
		"offset", t.sel.Offset(),
		"total", t.sel.Total(),
		"quiet", t.quiet)

	var sinceCheckpoint int64
	lastReport := time.Now()

	for {
		if t.sel.Remaining() == 0 {
			t.finishRun(ctx)
			return
		}

		if t.limiter != nil {
			if err := t.limiter.Wait(ctx); err != nil {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		cell, ok := t.sel.Next()
		if !ok {
			t.finishRun(ctx)
			return
		}
		t.current.Store(&cell)
		t.processed.Add(1)

		if err := t.deps.gen.Generate(context.WithoutCancel(ctx), t.region, cell); err != nil {
			t.failures.Add(1)
			t.logger.Warn("cell generation failed",
				"cell", cell.String(),
				"offset", t.sel.Offset()-1,
				"error", fmt.Errorf("%w: %w", ErrGenerationFailed, err))
		}

		sinceCheckpoint++
		if every := t.deps.config.CheckpointEvery; every > 0 && sinceCheckpoint >= every {
			sinceCheckpoint = 0
			t.checkpoint(context.WithoutCancel(ctx))
		}

		if time.Since(lastReport) >= t.deps.config.ReportInterval {
			lastReport = time.Now()
			t.emit(ctx, events.KindProgress)
		}
	}
}

// finishRun completes the task unless a pause or cancel already owns
// the shutdown.
func (t *GenTask) finishRun(ctx context.Context) {
	t.mu.Lock()
	if t.halting || ctx.Err() != nil {
		t.mu.Unlock()
		return
	}
	t.halting = true
	t.mu.Unlock()

	t.complete(context.WithoutCancel(ctx))
}

// complete deletes the record of a finished task. If the delete fails a
// record at the full offset is saved instead, which Continue never
// resumes.
func (t *GenTask) complete(ctx context.Context) {
	var persistErr error
	if err := t.deps.store.Delete(ctx, t.region); err != nil {
		persistErr = fmt.Errorf("%w: deleting %s: %w", ErrPersistence, t.region, err)
		t.logger.Error("failed to delete progress of completed task", "error", err)

		if err := t.deps.store.Save(ctx, t.snapshot(StatePaused)); err != nil {
			persistErr = fmt.Errorf("%w: marking %s complete: %w", persistErr, t.region, err)
			t.logger.Error("failed to mark progress of completed task as complete", "error", err)
		}
	}

	t.logger.Info("generation task completed",
		"total", t.sel.Total(),
		"failures", t.failures.Load())
	t.emitErr(ctx, events.KindCompleted, persistErr)
	t.exit(StateCompleted)
}

// halt stops the pull loop and waits for it to return. A task that is
// still saving its initial record is waited for first.
func (t *GenTask) halt() error {
	<-t.ready

	t.mu.Lock()
	if t.state != StateRunning || t.halting || t.aborted || t.done == nil {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrNotRunning, t.region, state)
	}
	t.halting = true
	t.stop()
	done := t.done
	t.mu.Unlock()

	<-done
	return nil
}

// relaunch restarts the pull loop after a halt whose follow-up failed.
func (t *GenTask) relaunch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked()
}

// Pause stops the task and persists its offset. If the record cannot be
// saved the task keeps running and an error wrapping ErrPersistence is
// returned.
func (t *GenTask) Pause(ctx context.Context) error {
	if err := t.halt(); err != nil {
		return err
	}

	if t.sel.Remaining() == 0 {
		t.complete(ctx)
		return fmt.Errorf("%w: %s already completed", ErrNotRunning, t.region)
	}

	p := t.snapshot(StatePaused)
	if err := t.deps.store.Save(ctx, p); err != nil {
		t.relaunch()
		t.logger.Error("failed to save progress on pause, task keeps running", "error", err)
		return fmt.Errorf("%w: saving %s: %w", ErrPersistence, t.region, err)
	}

	t.logger.Info("generation task paused", "offset", p.Offset, "total", p.Total())
	t.emit(ctx, events.KindPaused)
	t.exit(StatePaused)
	return nil
}

// Cancel stops the task and deletes its persisted progress. If the
// record cannot be deleted the task keeps running and an error wrapping
// ErrPersistence is returned.
func (t *GenTask) Cancel(ctx context.Context) error {
	if err := t.halt(); err != nil {
		return err
	}

	if err := t.deps.store.Delete(ctx, t.region); err != nil {
		t.relaunch()
		t.logger.Error("failed to delete progress on cancel, task keeps running", "error", err)
		return fmt.Errorf("%w: deleting %s: %w", ErrPersistence, t.region, err)
	}

	t.logger.Info("generation task cancelled", "offset", t.sel.Offset())
	t.emit(ctx, events.KindCancelled)
	t.exit(StateCancelled)
	return nil
}

func (t *GenTask) exit(state State) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	if t.deps.onExit != nil {
		t.deps.onExit(t)
	}
	t.finishOnce.Do(func() { close(t.finished) })
}

func (t *GenTask) checkpoint(ctx context.Context) {
	p := t.snapshot(StateRunning)
	if err := t.deps.store.Save(ctx, p); err != nil {
		t.logger.Warn("failed to checkpoint progress", "offset", p.Offset, "error", err)
		return
	}
	t.logger.Debug("progress checkpointed", "offset", p.Offset)
}

func (t *GenTask) snapshot(state State) Progress {
	center := t.sel.Center()
	return Progress{
		Region:    t.region,
		CenterX:   center.X,
		CenterZ:   center.Z,
		Radius:    t.sel.Radius(),
		Offset:    t.sel.Offset(),
		State:     state,
		UpdatedAt: time.Now().UTC(),
	}
}

// elapsed returns the time since the pull loop first started.
func (t *GenTask) elapsed() time.Duration {
	t.mu.Lock()
	startedAt := t.startedAt
	t.mu.Unlock()

	if startedAt.IsZero() {
		return 0
	}
	return time.Since(startedAt)
}

// rate returns the cells processed per second since the task started.
func (t *GenTask) rate() float64 {
	elapsed := t.elapsed().Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(t.processed.Load()) / elapsed
}

func (t *GenTask) emit(ctx context.Context, kind events.Kind) {
	t.emitErr(ctx, kind, nil)
}

// emitErr emits an event that reports err, if any.
func (t *GenTask) emitErr(ctx context.Context, kind events.Kind, err error) {
	if t.deps.emitter == nil {
		return
	}

	e := events.NewProgressEvent(kind, t.id, t.region)
	e.Offset = t.sel.Offset()
	e.Total = t.sel.Total()
	e.Failures = t.failures.Load()
	e.Rate = t.rate()
	e.Elapsed = t.elapsed()
	if c := t.current.Load(); c != nil {
		e.Current = *c
	}
	if err != nil {
		e.Error = err.Error()
	}

	if err := t.deps.emitter.EmitEvent(context.WithoutCancel(ctx), e); err != nil {
		t.logger.Debug("progress event not handled", "event_kind", kind, "error", err)
	}
}
