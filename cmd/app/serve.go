package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"offer-ai-service/internal/app"
	pg "offer-ai-service/internal/infra/db/postgres"
	"offer-ai-service/internal/infra/metrics"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the job consumer",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := load()
		if err != nil {
			return err
		}
		if cfg.Runtime.Dev {
			log.Warn().Msg("[DEV MODE] enabled")
		}

		metrics.MustRegister()
		metrics.SetBuildInfo(cfg.Server.Version, commit)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if migrateOnStart && cfg.Database.URL != "" {
			if err := pg.Migrate(ctx, cfg.Database.URL, log); err != nil {
				return err
			}
		}

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			log.Error().Err(err).Msg("startup failed")
			return err
		}
		defer a.Close()

		log.Info().Str("version", cfg.Server.Version).Str("provider", a.Provider.Name()).Msg("offerd starting")
		err = a.Run(ctx)
		log.Info().Msg("offerd stopped")
		return err
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "Apply database migrations before serving")
}
