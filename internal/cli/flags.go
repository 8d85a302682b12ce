package cli

import (
	"cmp"
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
	"github.com/stolostron/installer-dev-tools-sub000/pkg/bundle2chart"
)

// conversionOptions are the flags shared by convert and watch.
type conversionOptions struct {
	targetFile string
	sizesFile  string
	branch     string
	chartName  string
	skeleton   string
}

func registerConversionFlags(cmd *cobra.Command, opts *conversionOptions) {
	f := cmd.Flags()
	f.StringVarP(&opts.targetFile, "target", "t", "", "target config file (required)")
	f.StringVar(&opts.sizesFile, "sizes", "", "container size table, overriding the target's sizes")
	f.StringVar(&opts.branch, "branch", "", "target release branch, overriding the target's branch")
	f.StringVar(&opts.chartName, "chart-name", "", "chart name, overriding the target's name")
	f.StringVar(&opts.skeleton, "skeleton", "", "chart skeleton directory or .tgz (default: built-in)")
}

// build resolves the flags into Convert options. The skeleton and the
// size table fall back to the global config; a configured size table only
// applies to targets without sizes of their own. Target and size file
// errors are usage errors.
func (o *conversionOptions) build(ctx context.Context) ([]bundle2chart.Option, *config.Target, error) {
	if o.targetFile == "" {
		return nil, nil, &ExitError{Code: ExitUsage, Err: errors.New("--target (-t) is required")}
	}

	tgt, err := config.LoadTarget(o.targetFile)
	if err != nil {
		return nil, nil, &ExitError{Code: ExitUsage, Err: err}
	}

	cfg := config.FromContext(ctx)

	opts := []bundle2chart.Option{
		bundle2chart.WithTarget(tgt),
		bundle2chart.WithBranch(o.branch),
		bundle2chart.WithChartName(o.chartName),
		bundle2chart.WithSkeleton(cmp.Or(o.skeleton, cfg.Skeleton)),
		bundle2chart.WithReleaseVersions(cfg.ACMReleaseVersion, cfg.MCEReleaseVersion),
	}

	if sizesFile := cmp.Or(o.sizesFile, cfg.SizesFile); sizesFile != "" && (o.sizesFile != "" || tgt.Sizes == nil) {
		sizes, err := config.LoadSizes(sizesFile)
		if err != nil {
			return nil, nil, &ExitError{Code: ExitUsage, Err: err}
		}

		opts = append(opts, bundle2chart.WithSizes(sizes))
	}

	return opts, tgt, nil
}

// resolvedName returns the name the chart directory will get.
func (o *conversionOptions) resolvedName(tgt *config.Target) string {
	if o.chartName != "" {
		return o.chartName
	}

	return tgt.Name
}

// pipelineError marks a conversion failure as fatal.
func pipelineError(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	return &ExitError{Code: ExitFailure, Err: fmt.Errorf("converting bundle: %w", err)}
}
