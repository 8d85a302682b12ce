package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// newTestRootCmd mirrors the persistent flags of the real root command.
func newTestRootCmd() *cobra.Command {
	cmd := &cobra.Command{}
	pf := cmd.PersistentFlags()
	pf.String("config", "", "")
	pf.String("log-level", "info", "")
	pf.String("log-format", "text", "")
	pf.Bool("no-color", false, "")
	pf.BoolP("quiet", "q", false, "")

	return cmd
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))

	return p
}

// ---------------------------------------------------------------------------
// Default / Validate
// ---------------------------------------------------------------------------

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, LogLevelInfo, cfg.LogLevel)
	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.False(t, cfg.Quiet)
	assert.Empty(t, cfg.ACMReleaseVersion)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"debug json", func(c *Config) { c.LogLevel = "debug"; c.LogFormat = "json" }, ""},
		{"bad level", func(c *Config) { c.LogLevel = "verbose" }, "invalid log level"},
		{"bad format", func(c *Config) { c.LogFormat = "xml" }, "invalid log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}

			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestEffectiveLogLevel_QuietOverride(t *testing.T) {
	assert.Equal(t, "debug", (&Config{LogLevel: "debug"}).EffectiveLogLevel())
	assert.Equal(t, "error", (&Config{LogLevel: "debug", Quiet: true}).EffectiveLogLevel())
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

func TestLoad_DefaultsOnly(t *testing.T) {
	t.Setenv(EnvACMReleaseVersion, "")
	t.Setenv(EnvMCEReleaseVersion, "")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, cfg.LogLevel)
	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.Empty(t, cfg.ACMReleaseVersion)
	assert.Empty(t, cfg.MCEReleaseVersion)
}

func TestLoad_PrefixedEnv(t *testing.T) {
	t.Setenv("BUNDLE2CHART_LOG_LEVEL", "debug")
	t.Setenv("BUNDLE2CHART_QUIET", "true")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Quiet)
}

func TestLoad_ReleaseOverridesFromBareEnv(t *testing.T) {
	t.Setenv(EnvACMReleaseVersion, "2.13")
	t.Setenv(EnvMCEReleaseVersion, "2.8")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, "2.13", cfg.ACMReleaseVersion)
	assert.Equal(t, "2.8", cfg.MCEReleaseVersion)
}

func TestLoad_ConfigFile(t *testing.T) {
	p := writeTempConfig(t, "log-level: warn\nlog-format: json\n")

	cfg, err := Load(nil, p)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, p, cfg.ConfigFile)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_Precedence(t *testing.T) {
	t.Setenv("BUNDLE2CHART_LOG_LEVEL", "debug")
	p := writeTempConfig(t, "log-level: warn\n")

	cfg, err := Load(nil, p)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "env beats file")

	cmd := newTestRootCmd()
	require.NoError(t, cmd.PersistentFlags().Set("log-level", "error"))

	cfg, err = Load(cmd, p)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel, "flag beats env and file")
}

func TestLoad_InvalidValueFromFile(t *testing.T) {
	p := writeTempConfig(t, "log-format: xml\n")

	_, err := Load(nil, p)
	assert.ErrorContains(t, err, "invalid log format")
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

func TestContext_RoundTrip(t *testing.T) {
	cfg := &Config{LogLevel: "debug", LogFormat: "json"}
	assert.Equal(t, cfg, FromContext(NewContext(context.Background(), cfg)))
	assert.Equal(t, Default(), FromContext(context.Background()))
}

func TestLoad_ConversionDefaults(t *testing.T) {
	p := writeTempConfig(t, "skeleton: charts/hub-skeleton\nsizes: sizes.yaml\n")

	cfg, err := Load(nil, p)
	require.NoError(t, err)
	assert.Equal(t, "charts/hub-skeleton", cfg.Skeleton)
	assert.Equal(t, "sizes.yaml", cfg.SizesFile)

	cmd := newTestRootCmd()
	cmd.Flags().String("skeleton", "", "")
	require.NoError(t, cmd.Flags().Set("skeleton", "other.tgz"))

	cfg, err = Load(cmd, p)
	require.NoError(t, err)
	assert.Equal(t, "other.tgz", cfg.Skeleton, "command flag beats file")
	assert.Equal(t, "sizes.yaml", cfg.SizesFile)
}
