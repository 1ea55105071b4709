package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the final pause of every running task.
const shutdownTimeout = 30 * time.Second

func newRunCmd(opts *rootOptions) *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interactive console",
		Long: `Reads console commands from standard input until "exit", end of input
or an interrupt. Every running task is paused on the way out.

Commands: start, pause [world], continue [world], cancel [world],
world <world>, center <x> <z>, radius <cells>, skip <distance>, silent,
quiet <seconds>, status, worlds [prefix], exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := loadApplication(ctx, opts.configPath, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return runConsole(ctx, app, cmd, resume)
		},
	}
	cmd.Flags().BoolVar(&resume, "continue", false, "continue every saved task before reading commands")
	return cmd
}

// runConsole drives the console of app until input ends, then pauses
// every task.
func runConsole(ctx context.Context, app *application, cmd *cobra.Command, resume bool) error {
	defer app.cleanup()

	if resume {
		if err := app.console.Execute(ctx, "continue"); err != nil {
			app.logger.Error("failed to continue saved tasks", "error", err)
		}
	}

	runErr := app.console.Run(ctx, cmd.InOrStdin())

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := app.shutdown(shutdownCtx); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("failed to read commands: %w", runErr)
	}
	return nil
}
