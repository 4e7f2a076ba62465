package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"offer-ai-service/internal/config"
	"offer-ai-service/internal/infra/logging"
)

// Set by -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

var (
	configFile string
	devMode    bool
)

var rootCmd = &cobra.Command{
	Use:          "offerd",
	Short:        "AI offer generation service",
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "Developer mode: in-memory store, console logs, config file optional")
}

func load() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.LoadConfig(configFile, devMode)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Server.Version == "dev" && version != "dev" {
		cfg.Server.Version = version
	}
	return cfg, logging.New(cfg.Log, cfg.Runtime.Dev), nil
}
