// Package main provides the entry point for the police terminal CLI and
// companion server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/police-terminal/internal/config"
	"github.com/jonathan/police-terminal/internal/observability"
)

var (
	configPath string
	verbose    bool

	// Populated by PersistentPreRunE for every subcommand.
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "police_terminal",
	Short: "Police terminal overlay for a chat host",
	Long: "Police terminal scrapes person data (locations, progress, avatars, statements, news) out of a chat host's " +
		"page and chat history, merges it into records and serves the map, monitor and news panels.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a JSON or YAML config file (default $POLICE_TERMINAL_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print detailed debug information")
}

// setup loads the configuration and builds the logger.
func setup(_ *cobra.Command, _ []string) error {
	loaded, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg = loaded
	if verbose {
		cfg.Verbose = true
	}

	logger, err = observability.NewLogger(cfg.Verbose)
	if err != nil {
		return err
	}
	return nil
}

// loadConfig reads path (or $POLICE_TERMINAL_CONFIG), fills defaults and
// validates the result. With no path the defaults are used as-is.
// $POLICE_TERMINAL_DATABASE_URL selects Postgres when the file names no
// storage driver.
func loadConfig(path string) (config.Config, error) {
	if path == "" {
		path = os.Getenv("POLICE_TERMINAL_CONFIG")
	}

	var file config.Config
	if path != "" {
		c, err := config.LoadConfig(path)
		if err != nil {
			return config.Config{}, err
		}
		file = *c
	}
	if url := os.Getenv("POLICE_TERMINAL_DATABASE_URL"); url != "" && file.Storage.Driver == "" {
		file.Storage = config.StorageConfig{Driver: config.DriverPostgres, DSN: url}
	}

	merged := file.MergeWithDefaults(config.Defaults())
	if err := merged.Validate(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
