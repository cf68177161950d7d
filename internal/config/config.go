// Package config provides configuration management for viewpack using Viper
// for loading from files, environment variables, and command-line flags.
//
// Values come from .viewpack.yml, VIEWPACK_ prefixed environment variables
// (VIEWPACK_VIEWS_DIR, VIEWPACK_VIEWS_WAIT_MS, ...) and flags bound by the
// commands. Load applies defaults and validates the result.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Defaults.
const (
	DefaultViewsDir        = "src/views"
	DefaultOutput          = "src/views.js"
	DefaultWaitMS          = 1000
	DefaultSettleMS        = 100
	DefaultReadConcurrency = 8
	DefaultCacheSize       = 512
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"

	// MaxWaitMS bounds the debounce window.
	MaxWaitMS = 60000
)

type Config struct {
	Views ViewsConfig `mapstructure:"views" yaml:"views" json:"views"`
	Log   LogConfig   `mapstructure:"log" yaml:"log" json:"log"`
}

type ViewsConfig struct {
	Dir             string   `mapstructure:"dir" yaml:"dir" json:"dir"`
	Output          string   `mapstructure:"output" yaml:"output" json:"output"`
	WaitMS          int      `mapstructure:"wait_ms" yaml:"wait_ms" json:"wait_ms"`
	SettleMS        int      `mapstructure:"settle_ms" yaml:"settle_ms" json:"settle_ms"`
	Include         []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude         []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
	ReadConcurrency int      `mapstructure:"read_concurrency" yaml:"read_concurrency" json:"read_concurrency"`
	CacheSize       int      `mapstructure:"cache_size" yaml:"cache_size" json:"cache_size"`
	RequireDir      bool     `mapstructure:"require_dir" yaml:"require_dir" json:"require_dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// Wait returns the debounce window.
func (v ViewsConfig) Wait() time.Duration {
	return time.Duration(v.WaitMS) * time.Millisecond
}

// Settle returns the watcher settle period.
func (v ViewsConfig) Settle() time.Duration {
	return time.Duration(v.SettleMS) * time.Millisecond
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Views: ViewsConfig{
			Dir:             DefaultViewsDir,
			Output:          DefaultOutput,
			WaitMS:          DefaultWaitMS,
			SettleMS:        DefaultSettleMS,
			Include:         []string{},
			Exclude:         []string{},
			ReadConcurrency: DefaultReadConcurrency,
			CacheSize:       DefaultCacheSize,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Apply defaults only for values that were not explicitly set
	if config.Views.Dir == "" {
		config.Views.Dir = DefaultViewsDir
	}
	if config.Views.Output == "" {
		config.Views.Output = DefaultOutput
	}
	if !viper.IsSet("views.wait_ms") {
		config.Views.WaitMS = DefaultWaitMS
	}
	if !viper.IsSet("views.settle_ms") {
		config.Views.SettleMS = DefaultSettleMS
	}
	if !viper.IsSet("views.read_concurrency") {
		config.Views.ReadConcurrency = DefaultReadConcurrency
	}
	if !viper.IsSet("views.cache_size") {
		config.Views.CacheSize = DefaultCacheSize
	}

	// Handle patterns set via viper (workaround for viper slice handling of
	// comma separated environment values)
	if viper.IsSet("views.include") && len(config.Views.Include) == 0 {
		config.Views.Include = viper.GetStringSlice("views.include")
	}
	if viper.IsSet("views.exclude") && len(config.Views.Exclude) == 0 {
		config.Views.Exclude = viper.GetStringSlice("views.exclude")
	}
	if config.Views.Include == nil {
		config.Views.Include = []string{}
	}
	if config.Views.Exclude == nil {
		config.Views.Exclude = []string{}
	}

	// Handle bools set via viper (workaround for viper bool handling)
	if viper.IsSet("views.require_dir") {
		config.Views.RequireDir = viper.GetBool("views.require_dir")
	}

	if config.Log.Level == "" {
		config.Log.Level = DefaultLogLevel
	}
	if config.Log.Format == "" {
		config.Log.Format = DefaultLogFormat
	}

	// Validate configuration values
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Keys lists every configuration key, for binding environment variables.
var Keys = []string{
	"views.dir",
	"views.output",
	"views.wait_ms",
	"views.settle_ms",
	"views.include",
	"views.exclude",
	"views.read_concurrency",
	"views.cache_size",
	"views.require_dir",
	"log.level",
	"log.format",
}

// BindEnv makes every key resolvable from its VIEWPACK_ environment variable
// even when no flag or config file mentions it.
func BindEnv() error {
	for _, key := range Keys {
		if err := viper.BindEnv(key); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
