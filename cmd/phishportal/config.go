package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/secsim/phishportal/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(config.Example())
	},
}

func init() {
	configValidateCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/phishportal/config.yaml", "Path to configuration file")
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configExampleCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  Listen address: %s\n", cfg.Server.ListenAddr)
	fmt.Printf("  Base URL: %s\n", cfg.Server.BaseURL)
	fmt.Printf("  Database path: %s\n", cfg.Database.Path)
	fmt.Printf("  Queue path: %s\n", cfg.Queue.Path)
	fmt.Printf("  SMTP relay: %s\n", cfg.Mailer.RelayAddr)
	fmt.Printf("  DKIM signing: %v\n", cfg.Mailer.DKIM.Enabled)
	fmt.Printf("  Import cap: %d recipients, %d bytes\n", cfg.Import.MaxRecipients, cfg.Import.MaxFileSize)
	return nil
}
