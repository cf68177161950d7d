// Package cmd provides the command-line interface for viewpack with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	Values are resolved with the following precedence:
//	1. Command-line flags (--views, --wait, etc.) - highest priority
//	2. VIEWPACK_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (VIEWPACK_VIEWS_DIR, etc.)
//	4. Configuration files (.viewpack.yml) - lowest priority
//
// Environment Variables:
//
//	VIEWPACK_CONFIG_FILE: Path to custom configuration file
//	VIEWPACK_VIEWS_DIR: Views directory to watch
//	VIEWPACK_VIEWS_OUTPUT: Generated module path
//	VIEWPACK_VIEWS_WAIT_MS: Debounce window in milliseconds
//	And the rest following the VIEWPACK_<SECTION>_<OPTION> pattern
//
// A .env file in the working directory is loaded before the environment is
// consulted.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/conneroisu/viewpack/internal/config"
	"github.com/conneroisu/viewpack/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "viewpack",
	Short: "Compile a views directory into a minified JavaScript module",
	Long: `Viewpack watches a directory of markup fragments and keeps a generated
JavaScript module up to date. The module default-exports an object mapping
each fragment's relative path to its minified content.

Quick Start:
  viewpack watch                  Watch src/views and keep src/views.js current
  viewpack build                  Generate src/views.js once
  viewpack list                   Show the fragments in the generated module
  viewpack check                  Report unbalanced tags in fragments

Command Aliases (for faster typing):
  watch (w), build (b), list (l), check (c)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .viewpack.yml, can also use VIEWPACK_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", config.DefaultLogFormat, "log format (text, json)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. VIEWPACK_CONFIG_FILE environment variable
//  3. .viewpack.yml in the current directory
//
// Every configuration key is also bound to its VIEWPACK_ environment
// variable, e.g. VIEWPACK_VIEWS_WAIT_MS=250.
func initConfig() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("VIEWPACK_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".viewpack")
	}

	viper.SetEnvPrefix("VIEWPACK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := config.BindEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	// A missing or malformed file leaves the defaults in place.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from the log section.
func newLogger(cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    os.Stderr,
		Component: "viewpack",
	})
}

// loadConfig loads the configuration and applies the command's verbosity
// flags.
func loadConfig(flags *StandardFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if flags != nil {
		flags.Apply(cfg)
	}
	return cfg, nil
}
