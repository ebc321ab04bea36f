/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rideshare-app/apiserver/config"
	"github.com/rideshare-app/apiserver/internal/db"
	"github.com/rideshare-app/apiserver/internal/store/mongostore"
	"github.com/spf13/cobra"
)

var (
	migrationsPath string
	downSteps      int
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Prepare the configured store (SQL migrations or document indexes)",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations, or create indexes for the document store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		switch cfg.StoreBackend {
		case config.StorePostgres:
			migrator, err := newMigrator(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_, _ = migrator.Close()
			}()
			if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migrate up failed: %w", err)
			}
			return nil

		case config.StoreMongo:
			client, err := db.OpenMongo(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Disconnect(cmd.Context())
			}()
			if err := mongostore.New(client.Database(cfg.Mongo.DBName)).EnsureIndexes(cmd.Context()); err != nil {
				return fmt.Errorf("ensure indexes failed: %w", err)
			}
			return nil

		default:
			return fmt.Errorf("store backend %q has nothing to migrate", cfg.StoreBackend)
		}
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back SQL migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.StoreBackend != config.StorePostgres {
			return fmt.Errorf("migrate down is only supported for %s", config.StorePostgres)
		}

		migrator, err := newMigrator(cfg)
		if err != nil {
			return err
		}
		defer func() {
			_, _ = migrator.Close()
		}()

		if downSteps > 0 {
			err = migrator.Steps(-downSteps)
		} else {
			err = migrator.Down()
		}
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "internal/db/migrations", "directory holding the SQL migrations")
	migrateDownCmd.Flags().IntVar(&downSteps, "steps", 0, "number of migrations to roll back (0 rolls back all)")
}

func newMigrator(cfg config.Config) (*migrate.Migrate, error) {
	migrator, err := migrate.New("file://"+migrationsPath, db.PostgresURL(cfg))
	if err != nil {
		return nil, fmt.Errorf("init migrator failed: %w", err)
	}
	return migrator, nil
}
