// Command migrate applies or inspects the embedded database migrations.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"code-analysis-api/internal/shared/config"
	"code-analysis-api/internal/shared/storage/db"
)

// connectFunc opens the database for a subcommand; tests swap it out.
type connectFunc func(ctx context.Context) (*sql.DB, error)

func main() {
	if err := newRootCommand(connectFromConfig).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand(connect connectFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the code-analysis database schema",
		Long: `migrate runs the goose migrations embedded in the binary against DATABASE_URL.

Commands:
  up        apply all pending migrations
  down      roll back the most recent migration
  status    print the applied state of each migration
  version   print the current schema version`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		dbCommand(connect, "up", "Apply all pending migrations", func(cmd *cobra.Command, database *sql.DB) error {
			if err := db.RunMigrations(cmd.Context(), database); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		}),
		dbCommand(connect, "down", "Roll back the most recent migration", func(cmd *cobra.Command, database *sql.DB) error {
			return db.RollbackMigration(cmd.Context(), database)
		}),
		dbCommand(connect, "status", "Print migration status", func(cmd *cobra.Command, database *sql.DB) error {
			return db.MigrationStatus(cmd.Context(), database)
		}),
		dbCommand(connect, "version", "Print the current schema version", func(cmd *cobra.Command, database *sql.DB) error {
			v, err := db.MigrationVersion(cmd.Context(), database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d\n", v)
			return nil
		}),
	)
	return root
}

func dbCommand(connect connectFunc, use, short string, run func(*cobra.Command, *sql.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()
			return run(cmd, database)
		},
	}
}

func connectFromConfig(ctx context.Context) (*sql.DB, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	dsn, err := db.WithDatabaseName(cfg.DatabaseURL, cfg.DatabaseName)
	if err != nil {
		return nil, err
	}
	return db.Connect(ctx, dsn, db.OptionsFromEnv(db.DefaultMigrateOptions()))
}
