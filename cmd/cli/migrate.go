package main

import (
	"database/sql"
	"fmt"

	"github.com/coletivobank/coletivo/infra"
	"github.com/coletivobank/coletivo/internal/migrations"
	"github.com/coletivobank/coletivo/pkg/config"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var databaseURL string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back the Postgres schema",
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL)")

	withDB := func(fn func(cmd *cobra.Command, db *sql.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(databaseURL)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck
			return fn(cmd, db)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *sql.DB) error {
				if err := migrations.Up(db); err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render("schema is up to date"))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every applied migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *sql.DB) error {
				if err := migrations.Down(db); err != nil {
					return fmt.Errorf("migrate down: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), headerStyle.Render("schema rolled back"))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db *sql.DB) error {
				version, dirty, err := migrations.Version(db)
				if err != nil {
					return fmt.Errorf("migrate version: %w", err)
				}
				out := fmt.Sprintf("version %d", version)
				if dirty {
					out += mutedStyle.Render(" (dirty)")
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			}),
		},
	)
	return cmd
}

func openDB(databaseURL string) (*sql.DB, error) {
	cnf := &config.DB{Url: databaseURL}
	env := "production"
	if databaseURL == "" {
		cfg, err := config.Load(".env")
		if err != nil {
			return nil, fmt.Errorf("failed to load application configuration: %w", err)
		}
		cnf, env = cfg.DB, cfg.Env
	}
	gormDB, err := infra.NewDBConnection(cnf, env)
	if err != nil {
		return nil, err
	}
	return gormDB.DB()
}
