package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fgeck/branchsnap/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without executing any state transfer.`,
	RunE:  validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	// Check if file exists
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		log.Error().Str("file", configFile).Msg("config file not found")
		return fmt.Errorf("config file not found: %s", configFile)
	}

	// Load configuration
	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to parse config")
		return err
	}

	// Validate configuration
	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("configuration validation failed")
		return err
	}

	// Print configuration summary
	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Engine: %s\n", cfg.Database.Engine)
	fmt.Printf("  Database: %s\n", cfg.Database.Name)
	fmt.Printf("  Host: %s:%d\n", cfg.Database.Host, cfg.Database.Port)
	fmt.Printf("  Username: %s\n", cfg.Database.Username)
	if cfg.Database.Password != "" {
		fmt.Printf("  Password: (configured)\n")
	}
	fmt.Println()
	fmt.Println("Dumps:")
	fmt.Printf("  Directory: %s\n", cfg.Dump.Dir)
	fmt.Printf("  Compress: %v\n", cfg.Dump.Compress)
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Watcher coordination: %v\n", cfg.Watcher != nil)

	if cfg.Watcher != nil {
		fmt.Println()
		fmt.Println("Watcher Configuration:")
		fmt.Printf("  Marker: %s\n", cfg.Watcher.Marker)
		if cfg.Watcher.FormatterMarker != "" {
			fmt.Printf("  Formatter marker: %s\n", cfg.Watcher.FormatterMarker)
		}
	}

	if testDB := cfg.TestDatabaseName(); testDB != "" {
		fmt.Println()
		fmt.Printf("Sibling test database: %s\n", testDB)
	}

	return nil
}
