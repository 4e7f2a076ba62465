package main

import (
	"errors"

	"github.com/spf13/cobra"

	pg "offer-ai-service/internal/infra/db/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := load()
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return errors.New("database.url is required to migrate")
		}
		if err := pg.Migrate(cmd.Context(), cfg.Database.URL, log); err != nil {
			log.Error().Err(err).Msg("migration failed")
			return err
		}
		return nil
	},
}
