package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/secsim/phishportal/internal/config"
	"github.com/secsim/phishportal/internal/db"
	"github.com/secsim/phishportal/internal/repository"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Clean up old data (expired sessions, audit logs)",
	RunE:  runCleanup,
}

var (
	cleanupAuditDays int
	cleanupDryRun    bool
)

func init() {
	cleanupCmd.Flags().IntVar(&cleanupAuditDays, "audit-days", 180, "Delete audit log entries older than N days")
	cleanupCmd.Flags().BoolVar(&cleanupDryRun, "dry-run", false, "Show what would be deleted without actually deleting")
	cleanupCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/phishportal/config.yaml", "Path to configuration file")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if cleanupDryRun {
		fmt.Println("Dry run mode - no data will be deleted")
		fmt.Println()
	}

	// Expired sessions
	var sessionCount int
	if err := database.QueryRow(
		`SELECT COUNT(*) FROM sessions WHERE expires_at < ?`, time.Now(),
	).Scan(&sessionCount); err != nil {
		return err
	}
	fmt.Printf("Expired sessions: %d\n", sessionCount)
	if !cleanupDryRun && sessionCount > 0 {
		users := repository.NewUserRepository(database.DB)
		deleted, err := users.DeleteExpiredSessions()
		if err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}
		fmt.Printf("  Deleted: %d\n", deleted)
	}

	// Old audit entries
	cutoff := time.Now().AddDate(0, 0, -cleanupAuditDays)
	var auditCount int
	if err := database.QueryRow(
		`SELECT COUNT(*) FROM audit_log WHERE created_at < ?`, cutoff,
	).Scan(&auditCount); err != nil {
		return err
	}
	fmt.Printf("Audit log entries older than %d days: %d\n", cleanupAuditDays, auditCount)
	if !cleanupDryRun && auditCount > 0 {
		auditRepo := repository.NewAuditRepository(database.DB)
		deleted, err := auditRepo.DeleteOlderThan(cutoff)
		if err != nil {
			return fmt.Errorf("failed to delete audit entries: %w", err)
		}
		fmt.Printf("  Deleted: %d\n", deleted)
	}

	if !cleanupDryRun {
		fmt.Println("\nCleanup completed")
	}
	return nil
}
