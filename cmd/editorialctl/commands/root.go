package commands

import (
	"fmt"
	"os"

	"editorial/api/internal/config"
	"editorial/api/internal/logging"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "editorialctl",
	Short: "Operator tooling for the editorial API",
	Long: `editorialctl runs maintenance tasks against the same configuration as the
editorial API: schema migrations, search reindexing, book exports and
development tokens.

Configuration is read from --config (YAML), a .env file and the environment,
exactly like the API server.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*logging.Logger, error) {
	return logging.New().FromWriter(os.Stderr).WithLevel(cfg.LogLevel).Make()
}
