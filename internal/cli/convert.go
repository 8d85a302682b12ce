package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
	"github.com/stolostron/installer-dev-tools-sub000/internal/diff"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
	"github.com/stolostron/installer-dev-tools-sub000/internal/output"
	"github.com/stolostron/installer-dev-tools-sub000/pkg/bundle2chart"
)

type convertOptions struct {
	conversionOptions

	outputDir string
	dryRun    bool
	showDiff  bool

	verify       bool
	valueFiles   []string
	setValues    []string
	stringValues []string
}

func newConvertCommand() *cobra.Command {
	opts := &convertOptions{}

	cmd := &cobra.Command{
		Use:   "convert <bundle-dir>",
		Short: "Convert an operator bundle into a Helm chart",
		Long: `Convert an OLM operator bundle into a Helm chart.

The bundle directory holds the ClusterServiceVersion and the other bundle
manifests, either directly or in a manifests/ subdirectory. The chart is
written to <output-dir>/<chart-name>, replacing the previous chart except
for the files listed in the target's preserve_files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd.Context(), cmd, args[0], opts)
		},
	}

	registerConversionFlags(cmd, &opts.conversionOptions)

	f := cmd.Flags()
	f.StringVarP(&opts.outputDir, "output-dir", "o", ".", "directory receiving the chart directory")
	f.BoolVar(&opts.dryRun, "dry-run", false, "print the chart files instead of writing them")
	f.BoolVar(&opts.showDiff, "diff", false, "show a unified diff against the chart already in the output directory")
	f.BoolVar(&opts.verify, "verify", false, "render the chart in-memory and fail on invalid output")
	f.StringArrayVarP(&opts.valueFiles, "values", "f", nil, "values file used by --verify (can be repeated)")
	f.StringArrayVar(&opts.setValues, "set", nil, "value overrides used by --verify (key=value)")
	f.StringArrayVar(&opts.stringValues, "set-string", nil, "string value overrides used by --verify (key=value)")

	return cmd
}

func runConvert(ctx context.Context, cmd *cobra.Command, bundleDir string, opts *convertOptions) error {
	logger := logging.FromContext(ctx)

	convOpts, tgt, err := opts.build(ctx)
	if err != nil {
		return err
	}

	convOpts = append(convOpts, bundle2chart.WithLogger(logger))

	if opts.verify || len(opts.setValues) > 0 {
		convOpts = append(convOpts, bundle2chart.WithVerify(opts.setValues...))
	}

	if len(opts.valueFiles) > 0 {
		convOpts = append(convOpts, bundle2chart.WithVerifyValueFiles(opts.valueFiles...))
	}

	if len(opts.stringValues) > 0 {
		convOpts = append(convOpts, bundle2chart.WithVerifyStringValues(opts.stringValues...))
	}

	result, err := bundle2chart.Convert(ctx, bundleDir, convOpts...)
	if err != nil {
		return pipelineError(err)
	}

	for _, w := range result.Warnings {
		logger.Warn("conversion warning", slog.String("detail", w))
	}

	if opts.showDiff {
		chartDir := filepath.Join(opts.outputDir, opts.resolvedName(tgt))

		if err := printDiff(ctx, cmd.OutOrStdout(), chartDir, result); err != nil {
			return &ExitError{Code: ExitFailure, Err: err}
		}
	}

	if opts.dryRun {
		if !opts.showDiff {
			if err := printFiles(output.NewStreamWriter(cmd.OutOrStdout()), result); err != nil {
				return &ExitError{Code: ExitFailure, Err: err}
			}
		}

		printConvertSummary(cmd.ErrOrStderr(), result, "")

		return nil
	}

	dest, err := result.Save(ctx, opts.outputDir)
	if err != nil {
		return &ExitError{Code: ExitFailure, Err: fmt.Errorf("writing chart: %w", err)}
	}

	logger.Info("chart generated", slog.String("path", dest))
	printConvertSummary(cmd.ErrOrStderr(), result, dest)

	return nil
}

func printDiff(ctx context.Context, w io.Writer, chartDir string, result *bundle2chart.Result) error {
	existing, err := diff.ReadChart(chartDir)
	if err != nil {
		return err
	}

	opts := diff.DefaultOptions()
	opts.OldLabel = chartDir

	d, err := diff.Compute(existing, result.Files(), opts)
	if err != nil {
		return err
	}

	diff.Write(w, d, !config.FromContext(ctx).NoColor)

	return nil
}

// printFiles lists every chart file in path order.
func printFiles(w output.Writer, result *bundle2chart.Result) error {
	files := result.Files()

	for _, name := range result.FileNames() {
		if err := w.WriteFile(name, files[name]); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
	}

	return nil
}

func printConvertSummary(w io.Writer, result *bundle2chart.Result, dest string) {
	_, _ = fmt.Fprintf(w, "\n--- Conversion Summary ---\n")
	_, _ = fmt.Fprintf(w, "Chart:       %s\n", result.Chart.Name())
	_, _ = fmt.Fprintf(w, "Resources:   %d\n", result.Table.Len())
	_, _ = fmt.Fprintf(w, "Image keys:  %d\n", len(result.ImageKeys))
	_, _ = fmt.Fprintf(w, "Changes:     %d\n", len(result.Changes))

	if len(result.Warnings) > 0 {
		_, _ = fmt.Fprintf(w, "Warnings:    %d\n", len(result.Warnings))
	}

	if dest != "" {
		_, _ = fmt.Fprintf(w, "Written to:  %s\n", dest)
	}

	_, _ = fmt.Fprintf(w, "--------------------------\n")
}
