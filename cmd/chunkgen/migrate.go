package main

import (
	"fmt"

	"github.com/phrazzld/chunkgen/internal/config"
	"github.com/phrazzld/chunkgen/internal/platform/logger"
	"github.com/phrazzld/chunkgen/internal/platform/postgres"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|reset|status|version]",
		Short: "Manage the PostgreSQL progress schema",
		Long: `Runs goose migrations against store.postgres.url. Without an argument
the schema is migrated up. Only the postgres backend has a schema.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{postgres.MigrateUp, postgres.MigrateDown, postgres.MigrateReset, postgres.MigrateStatus, postgres.MigrateVersion},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := postgres.MigrateUp
			if len(args) == 1 {
				command = args[0]
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.Store.Backend != config.BackendPostgres {
				return fmt.Errorf("migrate requires the %s store backend, configured backend is %s",
					config.BackendPostgres, cfg.Store.Backend)
			}

			log, err := logger.Setup(cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}

			db, err := postgres.Open(cmd.Context(), cfg.Store.Postgres.URL, log)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Error("error closing database connection", "error", err)
				}
			}()

			return postgres.Migrate(cmd.Context(), db, command, log)
		},
	}
}
