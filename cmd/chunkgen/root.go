package main

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

// rootOptions holds the flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "chunkgen",
		Short: "Resumable background generation of the cells around a center",
		Long: `chunkgen generates every cell of a square area around a center point,
one background task per world. Tasks can be paused, continued and
cancelled; progress is saved so a task survives a restart.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
	root.SetVersionTemplate("chunkgen version {{.Version}}\n")
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"path to a YAML config file (CHUNKGEN_* environment variables override it)")

	root.AddCommand(
		newRunCmd(opts),
		newContinueCmd(opts),
		newStatusCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}
