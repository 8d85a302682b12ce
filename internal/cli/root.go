// Package cli implements the cobra command tree for bundle2chart.
package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
)

// Process exit codes.
const (
	// ExitFailure reports a fatal conversion error.
	ExitFailure = 1
	// ExitUsage reports a flag, config, or target file error.
	ExitUsage = 2
)

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command tree, runs it, and returns the exit code.
func Execute() int {
	cmd := NewRootCommand()

	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)

		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return exitErr.Code
		}

		return ExitFailure
	}

	return 0
}

// NewRootCommand constructs the top-level cobra.Command with all
// subcommands attached.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "bundle2chart",
		Short: "Convert OLM operator bundles into Helm charts",
		Long: `bundle2chart converts an OLM operator bundle into a parameterized Helm
chart.

It expands the ClusterServiceVersion install strategy, templates namespaces
and images, qualifies RBAC names, normalizes security contexts, and injects
the hub configuration control flow (node selectors, tolerations, proxy
settings, size tiers) before assembling the chart from a skeleton.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd, cfgFile)
			if err != nil {
				return &ExitError{Code: ExitUsage, Err: err}
			}

			logger := logging.SetupWithWriter(cfg, cmd.ErrOrStderr())

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("logFormat", cfg.LogFormat),
				slog.String("configFile", cfg.ConfigFile),
			)

			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: .bundle2chart.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.Bool("no-color", false, "disable colored output")
	pf.BoolP("quiet", "q", false, "suppress non-essential output")
	pf.String("acm-release-version", "", "pin the ACM release consulted by the version gate (env ACM_RELEASE_VERSION)")
	pf.String("mce-release-version", "", "pin the MCE release consulted by the version gate (env MCE_RELEASE_VERSION)")

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: ExitUsage, Err: err}
	})

	cmd.AddCommand(
		newVersionCommand(),
		newConvertCommand(),
		newInspectCommand(),
		newWatchCommand(),
		newCompletionCommand(),
	)

	return cmd
}
