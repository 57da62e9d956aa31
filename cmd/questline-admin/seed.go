package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create tables and seed the item catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			_, db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.InitializeSchema(ctx); err != nil {
				slog.Error("Schema initialization failed", slog.Any("error", err))
				return err
			}

			slog.Info("Schema and item catalog ready")
			return nil
		},
	}
}
