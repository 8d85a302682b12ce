// Package config provides configuration management for bundle2chart.
//
// Global settings are loaded from three sources with the following precedence
// (highest to lowest):
//  1. CLI flags
//  2. Environment variables (BUNDLE2CHART_ prefix)
//  3. Config file (.bundle2chart.yaml)
//
// The per-bundle conversion settings (image mappings, size tiers, security
// overrides) live in a separate target file, see [Target].
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Supported log levels.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// Supported log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Release override environment variables. They are read without the
// BUNDLE2CHART_ prefix so existing release pipelines keep working.
const (
	EnvACMReleaseVersion = "ACM_RELEASE_VERSION"
	EnvMCEReleaseVersion = "MCE_RELEASE_VERSION"
)

// Config represents the global configuration for bundle2chart.
type Config struct {
	// LogLevel controls the verbosity of log output.
	// Valid values: debug, info, warn, error.
	LogLevel string `mapstructure:"log-level" json:"logLevel"`

	// LogFormat controls the format of log output.
	// Valid values: text, json.
	LogFormat string `mapstructure:"log-format" json:"logFormat"`

	// NoColor disables colored output.
	NoColor bool `mapstructure:"no-color" json:"noColor"`

	// Quiet suppresses all log output below error level.
	Quiet bool `mapstructure:"quiet" json:"quiet"`

	// ACMReleaseVersion pins the release line used by the version gate
	// instead of deriving it from the target branch.
	ACMReleaseVersion string `mapstructure:"acm-release-version" json:"acmReleaseVersion,omitempty"`

	// MCEReleaseVersion pins the backplane line used by the version gate.
	MCEReleaseVersion string `mapstructure:"mce-release-version" json:"mceReleaseVersion,omitempty"`

	// Skeleton is the default chart skeleton, a directory or packaged
	// chart. Empty selects the built-in skeleton.
	Skeleton string `mapstructure:"skeleton" json:"skeleton,omitempty"`

	// SizesFile is a shared container size table applied to every target
	// that does not carry its own sizes.
	SizesFile string `mapstructure:"sizes" json:"sizes,omitempty"`

	// ConfigFile is the resolved path to the config file used.
	ConfigFile string `mapstructure:"-" json:"-"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		LogLevel:  LogLevelInfo,
		LogFormat: LogFormatText,
	}
}

// Validate checks that all config values are valid.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		// valid
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
		// valid
	default:
		return fmt.Errorf("invalid log format %q: must be one of text, json", c.LogFormat)
	}

	return nil
}

// EffectiveLogLevel returns the log level to use. When Quiet is true the log
// level is overridden to "error" regardless of the configured LogLevel.
func (c *Config) EffectiveLogLevel() string {
	if c.Quiet {
		return LogLevelError
	}

	return c.LogLevel
}

// Load initialises configuration from flags, environment variables, and an
// optional config file. A fresh viper instance is used on every call so that
// Load is safe for concurrent tests.
func Load(cmd *cobra.Command, configFile string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := configureEnv(v); err != nil {
		return nil, err
	}

	if err := configureFile(v, configFile); err != nil {
		return nil, err
	}

	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log-level", LogLevelInfo)
	v.SetDefault("log-format", LogFormatText)
	v.SetDefault("no-color", false)
	v.SetDefault("quiet", false)
	v.SetDefault("acm-release-version", "")
	v.SetDefault("mce-release-version", "")
	v.SetDefault("skeleton", "")
	v.SetDefault("sizes", "")
}

func configureEnv(v *viper.Viper) error {
	v.SetEnvPrefix("BUNDLE2CHART")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// The release overrides accept both the prefixed and the bare names.
	if err := v.BindEnv("acm-release-version", "BUNDLE2CHART_ACM_RELEASE_VERSION", EnvACMReleaseVersion); err != nil {
		return fmt.Errorf("binding %s: %w", EnvACMReleaseVersion, err)
	}

	if err := v.BindEnv("mce-release-version", "BUNDLE2CHART_MCE_RELEASE_VERSION", EnvMCEReleaseVersion); err != nil {
		return fmt.Errorf("binding %s: %w", EnvMCEReleaseVersion, err)
	}

	return nil
}

func configureFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file %q: %w", configFile, err)
		}

		return nil
	}

	v.SetConfigName(".bundle2chart")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "bundle2chart"))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}

		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// bindFlags binds the flags of cmd, so command flags such as --skeleton
// share their key with the config file, and then walks up to the root
// binding every level's persistent flags.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if cmd == nil {
		return nil
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}

	for c := cmd; c != nil; c = c.Parent() {
		if err := v.BindPFlags(c.PersistentFlags()); err != nil {
			return fmt.Errorf("binding persistent flags: %w", err)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

type ctxKey struct{}

// NewContext returns a child context carrying cfg.
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ctxKey{}, cfg)
}

// FromContext extracts a Config from ctx, falling back to Default().
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(ctxKey{}).(*Config); ok {
		return cfg
	}

	return Default()
}
