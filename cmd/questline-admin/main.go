package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"questline/app"
	"questline/database"
	"questline/logger"
)

var configPath string

func main() {
	customHandler := logger.NewHandler()
	slog.SetDefault(slog.New(customHandler))

	root := &cobra.Command{
		Use:           "questline-admin",
		Short:         "Administrative tooling for the Questline engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to config")
	root.AddCommand(migrateCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		slog.Error("Command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func openDB(ctx context.Context) (*app.Config, *database.DB, error) {
	cfg, err := app.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.New(ctx, cfg.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, db, nil
}
