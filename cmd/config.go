package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/conneroisu/viewpack/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage viewpack configuration",
	Long: `Manage viewpack configuration files and settings.

Examples:
  viewpack config validate                       # Validate .viewpack.yml
  viewpack config validate --file ci.yml         # Validate a specific file
  viewpack config show                           # Show resolved configuration
  viewpack config show --format json             # Show as JSON`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a viewpack configuration file.

This command checks for:
- Missing views directory or output path
- An output path inside the views directory
- Debounce and settle periods out of range
- Invalid include and exclude patterns
- Unknown log levels and formats

Examples:
  viewpack config validate              # Validate .viewpack.yml in current directory
  viewpack config validate --file config.yml
  viewpack config validate --strict     # Treat warnings as errors`,
	RunE: runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the configuration after loading the config file, applying
environment variable overrides and filling in defaults.

Examples:
  viewpack config show                  # YAML
  viewpack config show --format json    # JSON`,
	RunE: runConfigShow,
}

var (
	configFile   string
	configFormat string
	configStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: .viewpack.yml)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")
	AddFlagValidation(configValidateCmd, "file", ValidateFileExists)

	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
	AddFlagValidation(configShowCmd, "format", func(format string) error {
		return ValidateFormatWithSuggestion(format, []string{"yaml", "json"})
	})
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	targetFile := configFile
	if targetFile == "" {
		if _, err := os.Stat(".viewpack.yml"); err != nil {
			return errors.New("no configuration file found. Use --file to specify a config file")
		}
		targetFile = ".viewpack.yml"
	}

	return validateConfigFile(cmd.OutOrStdout(), targetFile, configStrict)
}

// validateConfigFile reads path on top of the defaults and reports every
// validation finding.
func validateConfigFile(w io.Writer, path string, strict bool) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read configuration file: %w", err)
	}

	cfg := config.Default()
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	fmt.Fprintf(w, "Validating configuration file: %s\n", path)

	validation := config.ValidateConfigWithDetails(cfg)
	if validation.Valid && !validation.HasWarnings() {
		_, err := fmt.Fprintln(w, "Configuration is valid.")
		return err
	}

	fmt.Fprint(w, validation.String())

	if validation.HasErrors() {
		return fmt.Errorf("configuration validation failed with %d errors", len(validation.Errors))
	}
	if strict {
		return fmt.Errorf("configuration validation failed in strict mode with %d warnings", len(validation.Warnings))
	}

	_, err := fmt.Fprintf(w, "Configuration is valid with %d warnings. Use --strict to treat warnings as errors.\n",
		len(validation.Warnings))
	return err
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	return writeConfig(cmd.OutOrStdout(), cfg, configFormat)
}

func writeConfig(w io.Writer, cfg *config.Config, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(cfg)
	case "yaml", "":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(cfg)
	default:
		return ValidateFormatWithSuggestion(format, []string{"yaml", "json"})
	}
}
