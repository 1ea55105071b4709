package main

import (
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show saved progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApplication(cmd.Context(), opts.configPath, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer app.cleanup()

			return app.console.Execute(cmd.Context(), "status")
		},
	}
}
