package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pixelvault/apiserver/config"
	"github.com/pixelvault/apiserver/internal/db"
)

var migrateSteps int

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all up migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn, err := migrationDSN()
		if err != nil {
			return err
		}
		if err := db.MigrateUp(dsn); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateSteps < 1 {
			return errors.New("--steps must be at least 1")
		}
		dsn, err := migrationDSN()
		if err != nil {
			return err
		}
		if err := db.MigrateDown(dsn, migrateSteps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		return nil
	},
}

func migrationDSN() (string, error) {
	cfg := config.LoadConfig()
	dsn := cfg.Database.DSN()
	if dsn == "" {
		return "", errors.New("DATABASE_URL or DB_HOST is required")
	}
	return dsn, nil
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")
}
