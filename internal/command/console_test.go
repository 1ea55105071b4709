package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/chunkgen/internal/events"
	"github.com/phrazzld/chunkgen/internal/selection"
	"github.com/phrazzld/chunkgen/internal/task"
	"github.com/phrazzld/chunkgen/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func nopGenerator(ctx context.Context, region string, cell selection.Coordinate) error {
	return nil
}

type consoleFixture struct {
	console *Console
	manager *task.Manager
	store   *task.MockProgressStore
	out     *syncBuffer
}

func newConsoleFixture(t *testing.T) *consoleFixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := task.NewMockProgressStore()
	emitter := events.NewInMemoryEventEmitter(logger)

	// An hour between cells leaves every started task parked after its
	// first cell.
	manager, err := task.NewManager(store, task.GeneratorFunc(nopGenerator), emitter,
		task.Params{Region: "world", Radius: 2, Quiet: time.Hour},
		task.Config{CheckpointEvery: 4, ReportInterval: time.Hour},
		logger)
	require.NoError(t, err)

	out := &syncBuffer{}
	catalog := world.NewCatalog([]string{"world", "world_nether", "world_the_end", "creative"})
	console := NewConsole(manager, catalog, out, logger)
	emitter.RegisterHandler(console)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	return &consoleFixture{console: console, manager: manager, store: store, out: out}
}

func (f *consoleFixture) exec(t *testing.T, line string) string {
	t.Helper()
	f.out.Reset()
	require.NoError(t, f.console.Execute(context.Background(), line))
	return f.out.String()
}

func line(format string, args ...any) string {
	return Prefix + " " + fmt.Sprintf(format, args...) + "\n"
}

func TestConsole_StartPauseContinueCancel(t *testing.T) {
	f := newConsoleFixture(t)

	assert.Equal(t, line(FormatStart, "world", 0, 0, 2), f.exec(t, "start"))
	assert.Equal(t, line(FormatStartedAlready, "world"), f.exec(t, "start"))

	assert.Equal(t, line(FormatPause, "world"), f.exec(t, "pause world"))
	rec, ok := f.store.Get("world")
	require.True(t, ok)
	assert.Equal(t, task.StatePaused, rec.State)

	assert.Equal(t, line(FormatNotRunning, "world"), f.exec(t, "pause world"))
	assert.Equal(t, line(FormatContinue, "world"), f.exec(t, "continue World"))
	assert.Equal(t, line(FormatCancel, "world"), f.exec(t, "cancel world"))

	_, ok = f.store.Get("world")
	assert.False(t, ok)
	assert.Equal(t, line(FormatNothing, "world"), f.exec(t, "continue world"))
}

func TestConsole_SetWideOperations(t *testing.T) {
	f := newConsoleFixture(t)

	assert.Equal(t, line(MessageNothingToPause), f.exec(t, "pause"))
	assert.Equal(t, line(MessageNothingAtAll), f.exec(t, "continue"))

	f.exec(t, "start")
	f.exec(t, "world creative")
	f.exec(t, "start")

	out := f.exec(t, "pause")
	assert.Contains(t, out, line(FormatPause, "creative"))
	assert.Contains(t, out, line(FormatPause, "world"))

	out = f.exec(t, "continue")
	assert.Contains(t, out, line(FormatContinue, "creative"))
	assert.Contains(t, out, line(FormatContinue, "world"))

	out = f.exec(t, "cancel")
	assert.Contains(t, out, line(FormatCancel, "creative"))
	assert.Contains(t, out, line(FormatCancel, "world"))
	assert.Empty(t, f.store.Records())
}

func TestConsole_Setters(t *testing.T) {
	f := newConsoleFixture(t)

	assert.Equal(t, line(FormatWorld, "world_nether"), f.exec(t, "world WORLD_NETHER"))
	assert.Equal(t, line(FormatWorldUnknown, "mars"), f.exec(t, "world mars"))
	assert.Equal(t, line(FormatCenter, -100, 250), f.exec(t, "center -100 250"))
	assert.Equal(t, line(FormatRadius, 12), f.exec(t, "radius 12"))
	assert.Equal(t, line(FormatQuiet, 3), f.exec(t, "quiet 3"))
	assert.Equal(t, line(FormatSkip, 256), f.exec(t, "skip 128"))
	assert.Equal(t, line(FormatSkip, 64), f.exec(t, "skip 4c"))

	p := f.manager.Defaults()
	assert.Equal(t, "world_nether", p.Region)
	assert.Equal(t, int64(-100), p.CenterX)
	assert.Equal(t, int64(250), p.CenterZ)
	assert.Equal(t, 12, p.Radius)
	assert.Equal(t, 3*time.Second, p.Quiet)
	assert.Equal(t, int64(320), p.Skip)

	assert.Equal(t, line(FormatSilent, "enabled"), f.exec(t, "silent"))
	assert.Equal(t, line(FormatSilent, "disabled"), f.exec(t, "silent"))
}

func TestConsole_SkipSaturates(t *testing.T) {
	f := newConsoleFixture(t)

	assert.Equal(t, line(FormatSkip, int64(math.MaxInt64)), f.exec(t, "skip 9223372036854775807"))
	assert.Equal(t, line(FormatSkip, int64(math.MaxInt64)), f.exec(t, "skip 9223372036854775807"))
	assert.Equal(t, line(FormatSkip, 4), f.exec(t, "skip 1c"))
	assert.Equal(t, int64(math.MaxInt64), f.manager.Defaults().Skip)
}

func TestConsole_InvalidInput(t *testing.T) {
	f := newConsoleFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		line string
	}{
		{"radius not a number", "radius abc"},
		{"negative radius", "radius -1"},
		{"radius too large", "radius 3000000000"},
		{"skip out of range", "skip 9223372036854775807k"},
		{"negative quiet", "quiet -5"},
		{"bad skip suffix", "skip 10x"},
		{"center missing z", "center 5"},
		{"start with arguments", "start now"},
		{"too many pause arguments", "pause a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.console.Execute(ctx, tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, task.ErrInvalidParameter), "got %v", err)
		})
	}

	assert.Error(t, f.console.Execute(ctx, "teleport"))
	assert.NoError(t, f.console.Execute(ctx, "   "))
}

func TestConsole_Status(t *testing.T) {
	f := newConsoleFixture(t)

	out := f.exec(t, "status")
	assert.Contains(t, out, MessageNoTasks)
	assert.Contains(t, out, MessageNothingToSave)

	f.exec(t, "start")
	running, ok := f.manager.Task("world")
	require.True(t, ok)
	require.Eventually(t, func() bool { return running.Offset() == 1 }, waitTimeout, time.Millisecond)

	out = f.exec(t, "status")
	assert.Contains(t, out, "world: running, 1/25 cells (4.00%), center 0, 0, radius 2, failures 0")
	assert.Contains(t, out, "world: saved running at 0/25 cells, center 0, 0, radius 2")
}

func TestConsole_Worlds(t *testing.T) {
	f := newConsoleFixture(t)

	assert.Equal(t, line("creative, world, world_nether, world_the_end"), f.exec(t, "worlds"))
	assert.Equal(t, line("world_nether"), f.exec(t, "worlds world_n"))
	assert.Equal(t, line(MessageNoWorlds), f.exec(t, "worlds mars"))
}

func TestConsole_HandleEvent(t *testing.T) {
	f := newConsoleFixture(t)
	ctx := context.Background()

	progress := events.NewProgressEvent(events.KindProgress, uuid.New(), "world")
	progress.Offset = 50
	progress.Total = 100
	progress.Rate = 10
	progress.Current = selection.Coordinate{X: 3, Z: -4}

	f.out.Reset()
	require.NoError(t, f.console.HandleEvent(ctx, progress))
	assert.Equal(t, line(FormatProgress, "world", 50, 50.0, "0:00:05", 10.0, "3, -4"), f.out.String())

	f.manager.SetSilent(true)
	f.out.Reset()
	require.NoError(t, f.console.HandleEvent(ctx, progress))
	assert.Empty(t, f.out.String())

	completed := events.NewProgressEvent(events.KindCompleted, uuid.New(), "world")
	completed.Offset = 100
	completed.Total = 100
	completed.Failures = 2
	completed.Rate = 10
	completed.Elapsed = 10 * time.Second
	require.NoError(t, f.console.HandleEvent(ctx, completed))
	assert.Equal(t, line(FormatComplete, "world", 100, 100.0, 2, "0:00:10"), f.out.String())

	completed.Error = "persistence failure: deleting world: dial redis://:hunter22@cache:6379: refused"
	f.out.Reset()
	require.NoError(t, f.console.HandleEvent(ctx, completed))
	out := f.out.String()
	assert.Contains(t, out, line(FormatComplete, "world", 100, 100.0, 2, "0:00:10"))
	assert.Contains(t, out, "Could not save progress for world:")
	assert.NotContains(t, out, "hunter22")
}

func TestConsole_Run(t *testing.T) {
	f := newConsoleFixture(t)

	in := strings.NewReader("radius 1\nradius\nexit\nradius 9\n")
	require.NoError(t, f.console.Run(context.Background(), in))

	out := f.out.String()
	assert.Contains(t, out, line(FormatRadius, 1))
	assert.Contains(t, out, "usage")
	assert.Equal(t, 1, f.manager.Defaults().Radius)
}

func TestConsole_RunStopsOnCancel(t *testing.T) {
	f := newConsoleFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	reader, writer := io.Pipe()
	defer writer.Close()

	done := make(chan error, 1)
	go func() { done <- f.console.Run(ctx, reader) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("console did not stop")
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0:00:00", formatClock(-time.Second))
	assert.Equal(t, "0:01:05", formatClock(65*time.Second))
	assert.Equal(t, "2:03:04", formatClock(2*time.Hour+3*time.Minute+4*time.Second))
}

func TestConsole_PersistenceFailureIsRedacted(t *testing.T) {
	f := newConsoleFixture(t)
	f.store.SaveFn = func(ctx context.Context, p task.Progress) error {
		return errors.New("dial postgres://chunkgen:hunter22@db:5432/chunkgen: refused")
	}

	out := f.exec(t, "start")
	assert.Contains(t, out, "Could not save progress for world:")
	assert.Contains(t, out, "[REDACTED_CREDENTIAL]db:5432/chunkgen")
	assert.NotContains(t, out, "hunter22")

	_, running := f.manager.Task("world")
	assert.False(t, running)
}
