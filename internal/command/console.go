package command

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/phrazzld/chunkgen/internal/events"
	"github.com/phrazzld/chunkgen/internal/redact"
	"github.com/phrazzld/chunkgen/internal/task"
	"github.com/phrazzld/chunkgen/internal/world"
	"github.com/spf13/cobra"
)

// TaskManager is the part of task.Manager the console drives.
type TaskManager interface {
	Start(ctx context.Context) (task.Params, error)
	Pause(ctx context.Context, region string) error
	PauseAll(ctx context.Context) []task.Result
	Continue(ctx context.Context, region string) error
	ContinueAll(ctx context.Context) ([]task.Result, error)
	Cancel(ctx context.Context, region string) error
	CancelAll(ctx context.Context) ([]task.Result, error)
	Skip(distance int64) (int64, error)
	SetQuiet(seconds int) error
	SetRadius(radius int) error
	SetCenter(x, z int64)
	SetRegion(region string) error
	ToggleSilent() bool
	Silent() bool
	Status() []task.Status
	Saved(ctx context.Context) ([]task.Progress, error)
}

// RegionResolver maps user input to region names.
type RegionResolver interface {
	Resolve(name string) (string, error)
	Suggest(prefix string) []string
}

// errExit is returned by the exit command to stop Run.
var errExit = errors.New("exit requested")

// Console executes command lines against a TaskManager.
type Console struct {
	manager TaskManager
	regions RegionResolver
	logger  *slog.Logger

	mu  sync.Mutex
	out io.Writer
}

// Console prints progress events
var _ events.EventHandler = (*Console)(nil)

// NewConsole creates a Console writing to out.
func NewConsole(manager TaskManager, regions RegionResolver, out io.Writer, logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		manager: manager,
		regions: regions,
		out:     out,
		logger:  logger.With("component", "console"),
	}
}

// Run reads command lines from in until end of input, an exit command
// or cancellation of ctx.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			err := c.Execute(ctx, line)
			if errors.Is(err, errExit) {
				return nil
			}
			if err != nil {
				c.println(err.Error())
			}
		}
	}
}

// Execute runs a single command line. Rejections the user can act on are
// printed; errors that reach the caller are invalid input or failures.
func (c *Console) Execute(ctx context.Context, line string) error {
	args := strings.Fields(line)
	if len(args) == 0 {
		return nil
	}
	args[0] = strings.ToLower(args[0])

	root := c.newRoot()
	root.SetArgs(args)
	c.logger.Debug("executing command", "command", args[0], "args", args[1:])
	return root.ExecuteContext(ctx)
}

// newRoot builds a fresh command tree so no flag or argument state
// survives between lines.
func (c *Console) newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "chunkgen",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(c.writer())
	root.SetErr(c.writer())

	root.AddCommand(
		&cobra.Command{
			Use:   "start",
			Short: "Start a task with the current world, center and radius",
			Args:  exactArgs(0),
			RunE:  c.runStart,
		},
		&cobra.Command{
			Use:   "pause [world]",
			Short: "Pause one task or every task, saving its progress",
			Args:  maxArgs(1),
			RunE:  c.runPause,
		},
		&cobra.Command{
			Use:   "continue [world]",
			Short: "Continue one saved task or every saved task",
			Args:  maxArgs(1),
			RunE:  c.runContinue,
		},
		&cobra.Command{
			Use:   "cancel [world]",
			Short: "Cancel one task or every task, discarding its progress",
			Args:  maxArgs(1),
			RunE:  c.runCancel,
		},
		&cobra.Command{
			Use:               "world <world>",
			Short:             "Set the world of the next start",
			Args:              exactArgs(1),
			ValidArgsFunction: c.completeWorld,
			RunE:              c.runWorld,
		},
		&cobra.Command{
			Use:   "center <x> <z>",
			Short: "Set the center cell of the next start",
			Args:  exactArgs(2),
			RunE:  c.runCenter,
		},
		&cobra.Command{
			Use:   "radius <cells>",
			Short: "Set the radius of the next start",
			Args:  exactArgs(1),
			RunE:  c.runRadius,
		},
		&cobra.Command{
			Use:   "skip <distance>",
			Short: "Skip cells already generated up to a block distance (suffix k or c)",
			Args:  exactArgs(1),
			RunE:  c.runSkip,
		},
		&cobra.Command{
			Use:   "silent",
			Short: "Toggle progress messages",
			Args:  exactArgs(0),
			RunE:  c.runSilent,
		},
		&cobra.Command{
			Use:   "quiet <seconds>",
			Short: "Set the minimum time between two cells",
			Args:  exactArgs(1),
			RunE:  c.runQuiet,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show running tasks and saved progress",
			Args:  exactArgs(0),
			RunE:  c.runStatus,
		},
		&cobra.Command{
			Use:   "worlds [prefix]",
			Short: "List worlds, optionally filtered by prefix",
			Args:  maxArgs(1),
			RunE:  c.runWorlds,
		},
		&cobra.Command{
			Use:     "exit",
			Aliases: []string{"quit", "stop"},
			Short:   "Pause every task and leave the console",
			Args:    exactArgs(0),
			RunE: func(cmd *cobra.Command, args []string) error {
				return errExit
			},
		},
	)

	// Negative coordinates must reach the commands as arguments.
	for _, cmd := range root.Commands() {
		cmd.DisableFlagParsing = true
	}
	return root
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: usage: %s", task.ErrInvalidParameter, cmd.Use)
		}
		return nil
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return fmt.Errorf("%w: usage: %s", task.ErrInvalidParameter, cmd.Use)
		}
		return nil
	}
}

func (c *Console) runStart(cmd *cobra.Command, args []string) error {
	p, err := c.manager.Start(cmd.Context())
	if err != nil {
		return c.report(p.Region, err)
	}
	c.printf(FormatStart, p.Region, p.CenterX, p.CenterZ, p.Radius)
	return nil
}

func (c *Console) runPause(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		region, err := c.regions.Resolve(args[0])
		if err != nil {
			return c.report(args[0], err)
		}
		if err := c.manager.Pause(cmd.Context(), region); err != nil {
			return c.report(region, err)
		}
		c.printf(FormatPause, region)
		return nil
	}

	results := c.manager.PauseAll(cmd.Context())
	if len(results) == 0 {
		c.println(MessageNothingToPause)
	}
	return c.reportAll(results, FormatPause)
}

func (c *Console) runContinue(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		region, err := c.regions.Resolve(args[0])
		if err != nil {
			return c.report(args[0], err)
		}
		if err := c.manager.Continue(cmd.Context(), region); err != nil {
			return c.report(region, err)
		}
		c.printf(FormatContinue, region)
		return nil
	}

	results, err := c.manager.ContinueAll(cmd.Context())
	if err != nil {
		return err
	}
	if len(results) == 0 {
		c.println(MessageNothingAtAll)
	}
	return c.reportAll(results, FormatContinue)
}

func (c *Console) runCancel(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		region, err := c.regions.Resolve(args[0])
		if err != nil {
			return c.report(args[0], err)
		}
		if err := c.manager.Cancel(cmd.Context(), region); err != nil {
			return c.report(region, err)
		}
		c.printf(FormatCancel, region)
		return nil
	}

	results, err := c.manager.CancelAll(cmd.Context())
	if rerr := c.reportAll(results, FormatCancel); rerr != nil && err == nil {
		err = rerr
	}
	if len(results) == 0 && err == nil {
		c.println(MessageNoTasks)
	}
	return err
}

func (c *Console) runWorld(cmd *cobra.Command, args []string) error {
	region, err := c.regions.Resolve(args[0])
	if err != nil {
		return c.report(args[0], err)
	}
	if err := c.manager.SetRegion(region); err != nil {
		return err
	}
	c.printf(FormatWorld, region)
	return nil
}

func (c *Console) completeWorld(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return c.regions.Suggest(toComplete), cobra.ShellCompDirectiveNoFileComp
}

func (c *Console) runCenter(cmd *cobra.Command, args []string) error {
	x, err := ParseInteger(args[0])
	if err != nil {
		return err
	}
	z, err := ParseInteger(args[1])
	if err != nil {
		return err
	}
	c.manager.SetCenter(x, z)
	c.printf(FormatCenter, x, z)
	return nil
}

func (c *Console) runRadius(cmd *cobra.Command, args []string) error {
	radius, err := parseInt(args[0])
	if err != nil {
		return err
	}
	if err := c.manager.SetRadius(radius); err != nil {
		return err
	}
	c.printf(FormatRadius, radius)
	return nil
}

func (c *Console) runSkip(cmd *cobra.Command, args []string) error {
	distance, err := ParseSuffixed(args[0])
	if err != nil {
		return err
	}
	n, err := c.manager.Skip(distance)
	if err != nil {
		return err
	}
	c.printf(FormatSkip, n)
	return nil
}

func (c *Console) runSilent(cmd *cobra.Command, args []string) error {
	c.printf(FormatSilent, enabled(c.manager.ToggleSilent()))
	return nil
}

func (c *Console) runQuiet(cmd *cobra.Command, args []string) error {
	seconds, err := parseInt(args[0])
	if err != nil {
		return err
	}
	if err := c.manager.SetQuiet(seconds); err != nil {
		return err
	}
	c.printf(FormatQuiet, seconds)
	return nil
}

func (c *Console) runStatus(cmd *cobra.Command, args []string) error {
	statuses := c.manager.Status()
	if len(statuses) == 0 {
		c.println(MessageNoTasks)
	}
	for _, s := range statuses {
		percent := 0.0
		if s.Total > 0 {
			percent = float64(s.Offset) * 100 / float64(s.Total)
		}
		c.printf(FormatActive, s.Region, s.State, s.Offset, s.Total, percent, s.Center, s.Radius, s.Failures)
	}

	saved, err := c.manager.Saved(cmd.Context())
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		c.println(MessageNothingToSave)
	}
	for _, p := range saved {
		c.printf(FormatSaved, p.Region, p.State, p.Offset, p.Total(), p.CenterX, p.CenterZ, p.Radius)
	}
	return nil
}

func (c *Console) runWorlds(cmd *cobra.Command, args []string) error {
	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}
	matches := c.regions.Suggest(prefix)
	if len(matches) == 0 {
		c.println(MessageNoWorlds)
		return nil
	}
	c.println(strings.Join(matches, ", "))
	return nil
}

// report prints the outcome of a rejected single-region operation. It
// returns the error only when it is not an expected rejection.
func (c *Console) report(region string, err error) error {
	switch {
	case errors.Is(err, world.ErrRegionNotFound):
		c.printf(FormatWorldUnknown, region)
	case errors.Is(err, task.ErrAlreadyRunning):
		c.printf(FormatStartedAlready, region)
	case errors.Is(err, task.ErrNothingToResume):
		c.printf(FormatNothing, region)
	case errors.Is(err, task.ErrNotRunning):
		c.printf(FormatNotRunning, region)
	case errors.Is(err, task.ErrPersistence):
		c.logger.Error("progress persistence failed", "region", region, "error", redact.Error(err))
		c.printf(FormatPersistence, region, redact.Error(err))
	default:
		return err
	}
	return nil
}

// reportAll prints one line per region of a set-wide operation.
func (c *Console) reportAll(results []task.Result, success string) error {
	var errs []error
	for _, r := range results {
		if r.Err == nil {
			c.printf(success, r.Region)
			continue
		}
		if err := c.report(r.Region, r.Err); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Region, err))
		}
	}
	return errors.Join(errs...)
}

// HandleEvent prints progress and completion of running tasks. Progress
// lines are suppressed in silent mode.
func (c *Console) HandleEvent(ctx context.Context, e *events.ProgressEvent) error {
	switch e.Kind {
	case events.KindProgress:
		if c.manager.Silent() {
			return nil
		}
		c.printf(FormatProgress, e.Region, e.Offset, e.Percent(), formatClock(e.ETA()), e.Rate, e.Current)
	case events.KindCompleted:
		c.printf(FormatComplete, e.Region, e.Offset, e.Percent(), e.Failures, formatClock(e.Elapsed))
		if e.Error != "" {
			c.printf(FormatPersistence, e.Region, redact.String(e.Error))
		}
	}
	return nil
}

func (c *Console) printf(format string, args ...any) {
	c.println(fmt.Sprintf(format, args...))
}

func (c *Console) println(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, "%s %s\n", Prefix, msg)
}

// writer returns an io.Writer that serializes with console output.
func (c *Console) writer() io.Writer {
	return lockedWriter{c}
}

type lockedWriter struct {
	c *Console
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.mu.Lock()
	defer w.c.mu.Unlock()
	return w.c.out.Write(p)
}
