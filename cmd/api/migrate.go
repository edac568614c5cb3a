package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/laissez/laissez/internal/config"
	"github.com/laissez/laissez/internal/repository"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration management",
	}

	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateDownCmd())
	cmd.AddCommand(migrateVersionCmd())

	return cmd
}

func openMigrator() (*repository.Migrator, string, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	mg, err := repository.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		return nil, "", errors.New(sanitizeError(err, cfg.DatabaseURL))
	}
	return mg, cfg.DatabaseURL, nil
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			mg, dsn, err := openMigrator()
			if err != nil {
				return err
			}
			defer mg.Close()

			if err := mg.Up(); err != nil {
				return errors.New(sanitizeError(err, dsn))
			}

			v, dirty, _ := mg.Version()
			slog.Info("migration complete", "version", v, "dirty", dirty)
			return nil
		},
	}
}

func migrateDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (default: 1 step)",
		RunE: func(cmd *cobra.Command, args []string) error {
			mg, dsn, err := openMigrator()
			if err != nil {
				return err
			}
			defer mg.Close()

			if err := mg.Down(steps); err != nil {
				return errors.New(sanitizeError(err, dsn))
			}

			v, dirty, _ := mg.Version()
			slog.Info("rollback complete", "version", v, "dirty", dirty)
			return nil
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "number of migrations to roll back")
	return cmd
}

func migrateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			mg, dsn, err := openMigrator()
			if err != nil {
				return err
			}
			defer mg.Close()

			v, dirty, err := mg.Version()
			if err != nil {
				return errors.New(sanitizeError(err, dsn))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version: %d, dirty: %v\n", v, dirty)
			return nil
		},
	}
}
