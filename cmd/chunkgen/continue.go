package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newContinueCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "continue [world]",
		Short: "Continue saved tasks and wait for them to finish",
		Long: `Continues the saved task of one world, or of every world, and waits
until they complete. An interrupt pauses them again.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := loadApplication(ctx, opts.configPath, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return runContinue(ctx, app, args)
		},
	}
}

// runContinue resumes saved tasks and blocks until every one of them has
// finished or ctx is done.
func runContinue(ctx context.Context, app *application, args []string) error {
	defer app.cleanup()

	line := "continue"
	if len(args) == 1 {
		line += " " + args[0]
	}
	if err := app.console.Execute(ctx, line); err != nil {
		return err
	}

	for _, s := range app.manager.Status() {
		t, ok := app.manager.Task(s.Region)
		if !ok {
			continue
		}
		select {
		case <-t.Finished():
		case <-ctx.Done():
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return app.shutdown(shutdownCtx)
}
