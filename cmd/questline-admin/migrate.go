package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"questline/migration"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Import storylines, progress and inventory from the legacy store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.InitializeSchema(ctx); err != nil {
				return err
			}

			migrator := migration.NewMigrator(db.BunDB(), db.Pool(), cfg.Legacy.DataDir)
			if cfg.Legacy.MongoURI != "" {
				if err := migrator.WithMongo(ctx, cfg.Legacy.MongoURI, cfg.Legacy.Database); err != nil {
					slog.Error("Failed to connect to legacy database", slog.Any("error", err))
					return err
				}
			}

			if err := migrator.MigrateAll(ctx); err != nil {
				slog.Error("Migration failed", slog.Any("error", err))
				return err
			}

			slog.Info("Migration completed successfully!")
			return nil
		},
	}
}
