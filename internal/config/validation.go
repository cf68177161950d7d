package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/conneroisu/viewpack/internal/logging"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("Validation errors:\n")
		for _, err := range vr.Errors {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
			for _, suggestion := range err.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	if len(vr.Warnings) > 0 {
		builder.WriteString("Validation warnings:\n")
		for _, warning := range vr.Warnings {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", warning.Field, warning.Message))
			for _, suggestion := range warning.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, message string, suggestions ...string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, message string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: message, Suggestions: suggestions})
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validateViewsConfigDetails(&config.Views, result)
	validateLogConfigDetails(&config.Log, result)

	return result
}

func validateViewsConfigDetails(config *ViewsConfig, result *ValidationResult) {
	if strings.TrimSpace(config.Dir) == "" {
		result.addError("views.dir", config.Dir, "views directory cannot be empty",
			"set views.dir to the directory holding your markup fragments, e.g. src/views")
	}
	if strings.TrimSpace(config.Output) == "" {
		result.addError("views.output", config.Output, "output path cannot be empty",
			"set views.output to the generated module path, e.g. src/views.js")
	}

	if config.Dir != "" && config.Output != "" && isWithin(config.Dir, config.Output) {
		result.addError("views.output", config.Output, "output must not be inside the views directory",
			"the artifact would be picked up as a fragment; write it next to the views directory instead")
	}

	if config.WaitMS < 1 || config.WaitMS > MaxWaitMS {
		result.addError("views.wait_ms", config.WaitMS,
			fmt.Sprintf("debounce wait must be between 1 and %d milliseconds", MaxWaitMS),
			"values between 1000 and 3000 suit most editors")
	}
	if config.SettleMS < 0 {
		result.addError("views.settle_ms", config.SettleMS, "settle period cannot be negative")
	} else if config.SettleMS >= config.WaitMS && config.WaitMS > 0 {
		result.addWarning("views.settle_ms", config.SettleMS, "settle period is not shorter than the debounce wait",
			"file changes will be reported later than the debounce window suggests")
	}

	if config.ReadConcurrency < 1 {
		result.addError("views.read_concurrency", config.ReadConcurrency, "read concurrency must be at least 1")
	}
	if config.CacheSize < 0 {
		result.addError("views.cache_size", config.CacheSize, "cache size cannot be negative",
			"use 0 to disable the minify cache")
	}

	for _, pattern := range config.Include {
		if !doublestar.ValidatePattern(pattern) {
			result.addError("views.include", pattern, "invalid glob pattern")
		}
	}
	for _, pattern := range config.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			result.addError("views.exclude", pattern, "invalid glob pattern")
		}
	}

	if config.Dir != "" {
		if info, err := os.Stat(config.Dir); err != nil {
			result.addWarning("views.dir", config.Dir, "views directory does not exist",
				"create it, or the watch command will not start")
		} else if !info.IsDir() {
			result.addError("views.dir", config.Dir, "views path is not a directory")
		}
	}

	if config.Output != "" && filepath.Ext(config.Output) != ".js" && filepath.Ext(config.Output) != ".mjs" {
		result.addWarning("views.output", config.Output, "output is not a JavaScript module",
			"the artifact is an ES module; name it with a .js or .mjs extension")
	}
}

func validateLogConfigDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, "unknown log level",
			"use one of debug, info, warn, error")
	}
	switch config.Format {
	case "text", "json":
	default:
		result.addError("log.format", config.Format, "unknown log format", "use text or json")
	}
}

// validateConfig validates configuration values and returns the first error
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if result.HasErrors() {
		err := result.Errors[0]
		return &err
	}
	return nil
}

// isWithin reports whether target lies inside dir.
func isWithin(dir, target string) bool {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, absTarget)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
