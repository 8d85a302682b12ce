package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/stolostron/installer-dev-tools-sub000/internal/diff"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
	"github.com/stolostron/installer-dev-tools-sub000/internal/watch"
	"github.com/stolostron/installer-dev-tools-sub000/pkg/bundle2chart"
)

type watchOptions struct {
	conversionOptions

	outputDir string
	debounce  time.Duration
	dryRun    bool
}

func newWatchCommand() *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <bundle-dir>",
		Short: "Regenerate the chart whenever the bundle changes",
		Long: `Watch a bundle directory, the target file, and the sizes file, and
regenerate the chart after every burst of changes. A failed conversion is
reported and watching continues. Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, args[0], opts)
		},
	}

	registerConversionFlags(cmd, &opts.conversionOptions)

	f := cmd.Flags()
	f.StringVarP(&opts.outputDir, "output-dir", "o", "", "directory receiving the chart directory (required)")
	f.DurationVar(&opts.debounce, "debounce", 500*time.Millisecond, "quiet period before regenerating")
	f.BoolVar(&opts.dryRun, "dry-run", false, "convert and report without writing the chart")

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, bundleDir string, opts *watchOptions) error {
	if opts.outputDir == "" {
		return &ExitError{Code: ExitUsage, Err: errors.New("--output-dir (-o) is required")}
	}

	if opts.targetFile == "" {
		return &ExitError{Code: ExitUsage, Err: errors.New("--target (-t) is required")}
	}

	logger := logging.FromContext(ctx)

	extra := []string{opts.targetFile}
	if opts.sizesFile != "" {
		extra = append(extra, opts.sizesFile)
	}

	wopts := watch.DefaultOptions()
	wopts.BundleDir = bundleDir
	wopts.ExtraFiles = extra
	wopts.Ignore = []string{opts.outputDir}
	wopts.Debounce = opts.debounce
	wopts.Logger = logger
	wopts.Out = cmd.ErrOrStderr()

	return watch.Run(ctx, wopts, func(ctx context.Context) (*watch.RunResult, error) {
		// The target is re-read on every run so edits to it take effect.
		convOpts, tgt, err := opts.build(ctx)
		if err != nil {
			return nil, err
		}

		result, err := bundle2chart.Convert(ctx, bundleDir, append(convOpts, bundle2chart.WithLogger(logger))...)
		if err != nil {
			return nil, err
		}

		chartDir := filepath.Join(opts.outputDir, opts.resolvedName(tgt))

		existing, err := diff.ReadChart(chartDir)
		if err != nil {
			return nil, err
		}

		d, err := diff.Compute(existing, result.Files(), diff.DefaultOptions())
		if err != nil {
			return nil, err
		}

		run := &watch.RunResult{
			Resources: result.Table.Len(),
			ImageKeys: len(result.ImageKeys),
			Warnings:  len(result.Warnings),
		}

		for _, f := range d.Files {
			run.Changed = append(run.Changed, f.Path)
		}

		if opts.dryRun || !d.HasDifferences() {
			return run, nil
		}

		dest, err := result.Save(ctx, opts.outputDir)
		if err != nil {
			return nil, fmt.Errorf("writing chart: %w", err)
		}

		run.ChartDir = dest

		return run, nil
	})
}
