package cmd

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/solatis/rulekeeper/internal/core/config"
)

const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:          "rulekeeper",
	Short:        "RuleKeeper alert rule service",
	Long:         `RuleKeeper builds, validates, stores and evaluates nested alert rules against threat-intelligence entities.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...); defaults to RK_DB_URL")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds the process logger from --log-level and --log-format.
func newLogger() (hclog.Logger, error) {
	level := hclog.LevelFromString(logLevel)
	if level == hclog.NoLevel {
		return nil, fmt.Errorf("unknown log level %q", logLevel)
	}
	if logFormat != "json" && logFormat != "text" {
		return nil, fmt.Errorf("unknown log format %q", logFormat)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "rulekeeper",
		Level:      level,
		JSONFormat: logFormat == "json",
		Output:     os.Stderr,
	}), nil
}

// databaseURL returns --db-url, falling back to RK_DB_URL.
func databaseURL() (string, error) {
	if dbURL != "" {
		return dbURL, nil
	}
	if v := os.Getenv(config.EnvPrefix + "_DB_URL"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("--db-url or %s_DB_URL required", config.EnvPrefix)
}
