package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/secsim/phishportal/internal/config"
	"github.com/secsim/phishportal/internal/db"
)

var migrateCheck bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/phishportal/config.yaml", "Path to configuration file")
	migrateCmd.Flags().BoolVar(&migrateCheck, "check", false, "Run an integrity check after migrating")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	if migrateCheck {
		var result string
		if err := database.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
			return err
		}
		if result != "ok" {
			return fmt.Errorf("integrity check failed: %s", result)
		}
	}

	fmt.Printf("Migrations completed for %s\n", cfg.Database.Path)
	return nil
}
