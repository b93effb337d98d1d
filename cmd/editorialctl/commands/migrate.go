package commands

import (
	"context"
	"errors"
	"fmt"

	"editorial/api/internal/config"
	"editorial/api/internal/store"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(ctx context.Context, cfg config.Config, run migrationRunner) error {
			applied, err := store.ApplyMigrations(ctx, run.db, cfg.MigrationsDir)
			for _, version := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", version)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(ctx context.Context, cfg config.Config, run migrationRunner) error {
			version, err := store.RollbackMigration(ctx, run.db, cfg.MigrationsDir)
			if errors.Is(err, store.ErrNoMigrations) {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to revert")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reverted %s\n", version)
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List applied migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(ctx context.Context, cfg config.Config, run migrationRunner) error {
			applied, err := store.AppliedMigrations(ctx, run.db)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
				return nil
			}
			for _, version := range applied {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			}
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
