package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/conneroisu/viewpack/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Views flags
	ViewsDir   string `flag:"views" desc:"Views directory" default:"src/views"`
	Output     string `flag:"output,o" desc:"Generated module path" default:"src/views.js"`
	RequireDir bool   `flag:"require-dir" desc:"Fail when the views directory is missing" default:"false"`

	// Watch flags
	WaitMS   int `flag:"wait" desc:"Debounce window in milliseconds" default:"1000"`
	SettleMS int `flag:"settle" desc:"Write settle period in milliseconds" default:"100"`

	// Output flags
	Format  string `flag:"format,f" desc:"Output format (table|json|yaml)" default:"table"`
	Verbose bool   `flag:"verbose,v" desc:"Enable verbose output" default:"false"`
	Quiet   bool   `flag:"quiet,q" desc:"Suppress output" default:"false"`
}

// viewsBindings maps flag names to configuration keys.
var viewsBindings = map[string]string{
	"views":       "views.dir",
	"output":      "views.output",
	"require-dir": "views.require_dir",
	"wait":        "views.wait_ms",
	"settle":      "views.settle_ms",
}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "views":
			addViewsFlags(cmd, flags)
		case "watch":
			addWatchFlags(cmd, flags)
		case "format":
			addFormatFlags(cmd, flags)
		case "verbosity":
			addVerbosityFlags(cmd, flags)
		}
	}

	return flags
}

func addViewsFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVar(&flags.ViewsDir, "views", config.DefaultViewsDir, "Views directory")
	cmd.Flags().StringVarP(&flags.Output, "output", "o", config.DefaultOutput, "Generated module path")
	cmd.Flags().BoolVar(&flags.RequireDir, "require-dir", false, "Fail when the views directory is missing")
}

func addWatchFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().IntVar(&flags.WaitMS, "wait", config.DefaultWaitMS, "Debounce window in milliseconds")
	cmd.Flags().IntVar(&flags.SettleMS, "settle", config.DefaultSettleMS, "Write settle period in milliseconds")
}

func addFormatFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.Format, "format", "f", "table", "Output format (table|json|yaml)")
}

func addVerbosityFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress output")
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.Quiet && f.Verbose {
		return fmt.Errorf("cannot specify both --quiet and --verbose")
	}
	if f.WaitMS < 0 {
		return fmt.Errorf("wait must not be negative, got %d", f.WaitMS)
	}
	if f.SettleMS < 0 {
		return fmt.Errorf("settle must not be negative, got %d", f.SettleMS)
	}
	return nil
}

// Apply overrides the log level in cfg according to the verbosity flags.
func (f *StandardFlags) Apply(cfg *config.Config) {
	switch {
	case f.Verbose:
		cfg.Log.Level = "debug"
	case f.Quiet:
		cfg.Log.Level = "error"
	}
}

// SetViperBindings binds flags to viper configuration keys. Commands call it
// from PreRunE so that only the running command's flags are bound.
func SetViperBindings(cmd *cobra.Command, bindings map[string]string) error {
	for flagName, configKey := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(configKey, flag); err != nil {
			return fmt.Errorf("bind --%s to %s: %w", flagName, configKey, err)
		}
	}
	return nil
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}

	// Store original value setter
	originalSet := flag.Value.Set

	// Create wrapper that validates
	flag.Value = &validatingValue{
		Value:       flag.Value,
		validator:   validator,
		originalSet: originalSet,
	}
}

type validatingValue struct {
	pflag.Value
	validator   func(string) error
	originalSet func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.originalSet(val)
}

// ValidateFormatWithSuggestion accepts format when it is one of valid and
// otherwise names the closest valid format.
func ValidateFormatWithSuggestion(format string, valid []string) error {
	for _, v := range valid {
		if format == v {
			return nil
		}
	}

	msg := fmt.Sprintf("invalid format %q, must be one of: %s", format, strings.Join(valid, ", "))
	if s := closest(format, valid); s != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", s)
	}
	return fmt.Errorf("%s", msg)
}

// closest returns the candidate within edit distance two of s, if any.
func closest(s string, candidates []string) string {
	best, bestDist := "", 3
	lower := strings.ToLower(s)
	for _, c := range candidates {
		if d := editDistance(lower, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func editDistance(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// ValidateMillis accepts a non-negative integer number of milliseconds.
func ValidateMillis(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid duration in milliseconds: %s", s)
	}
	if n < 0 || n > config.MaxWaitMS {
		return fmt.Errorf("milliseconds must be between 0 and %d, got %d", config.MaxWaitMS, n)
	}
	return nil
}

// ValidateFileExists accepts an empty name or the name of an existing file.
func ValidateFileExists(filename string) error {
	if filename == "" {
		return nil
	}

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", filename)
	}

	return nil
}
