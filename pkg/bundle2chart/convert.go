// Package bundle2chart provides a public Go API for converting OLM operator
// bundles into Helm charts.
//
// Basic usage:
//
//	result, err := bundle2chart.Convert(ctx, "path/to/bundle",
//	    bundle2chart.WithTargetFile("targets/widget.yaml"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	dir, err := result.Save(ctx, "charts/toggle")
//
// The conversion runs in memory. Nothing is written until Save is called.
package bundle2chart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"helm.sh/helm/v3/pkg/chart"

	"github.com/stolostron/installer-dev-tools-sub000/internal/bundle"
	"github.com/stolostron/installer-dev-tools-sub000/internal/chartify"
	"github.com/stolostron/installer-dev-tools-sub000/internal/classify"
	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
	"github.com/stolostron/installer-dev-tools-sub000/internal/gate"
	"github.com/stolostron/installer-dev-tools-sub000/internal/helm/assembler"
	"github.com/stolostron/installer-dev-tools-sub000/internal/helm/chartmeta"
	"github.com/stolostron/installer-dev-tools-sub000/internal/helm/loader"
	"github.com/stolostron/installer-dev-tools-sub000/internal/helm/renderer"
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
)

// Option configures the bundle-to-chart conversion.
// Use the With* functions to create Options.
type Option func(*options)

type options struct {
	target     *config.Target
	targetFile string

	chartName string
	branch    string
	sizes     *config.Sizes

	acmVersion string
	mceVersion string

	skeleton string

	verify bool
	values renderer.ValuesOptions

	logger *slog.Logger
}

// WithTarget sets the per-bundle conversion settings.
func WithTarget(t *config.Target) Option { return func(o *options) { o.target = t } }

// WithTargetFile reads the per-bundle conversion settings from path.
func WithTargetFile(path string) Option { return func(o *options) { o.targetFile = path } }

// WithChartName overrides the chart name from the target settings.
func WithChartName(name string) Option { return func(o *options) { o.chartName = name } }

// WithBranch overrides the target release branch.
func WithBranch(branch string) Option { return func(o *options) { o.branch = branch } }

// WithSizes overrides the container size table.
func WithSizes(s *config.Sizes) Option { return func(o *options) { o.sizes = s } }

// WithReleaseVersions pins the ACM and MCE releases consulted by the
// version gate. Empty values are ignored.
func WithReleaseVersions(acm, mce string) Option {
	return func(o *options) {
		o.acmVersion = acm
		o.mceVersion = mce
	}
}

// WithSkeleton sets the chart skeleton (directory or .tgz). The built-in
// skeleton is used by default.
func WithSkeleton(ref string) Option { return func(o *options) { o.skeleton = ref } }

// WithVerify renders the generated chart in-memory with the given --set
// style overrides and fails when any template does not render to valid
// YAML.
func WithVerify(values ...string) Option {
	return func(o *options) {
		o.verify = true
		o.values.Values = append(o.values.Values, values...)
	}
}

// WithVerifyValueFiles adds values files layered under the --set overrides
// of WithVerify. It enables verification.
func WithVerifyValueFiles(files ...string) Option {
	return func(o *options) {
		o.verify = true
		o.values.ValueFiles = append(o.values.ValueFiles, files...)
	}
}

// WithVerifyStringValues adds --set-string style overrides. It enables
// verification.
func WithVerifyStringValues(values ...string) Option {
	return func(o *options) {
		o.verify = true
		o.values.StringValues = append(o.values.StringValues, values...)
	}
}

// WithLogger sets the logger. Logging is discarded by default.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// Result holds the output of a successful conversion.
type Result struct {
	// Chart is the generated chart.
	Chart *chart.Chart

	// Table holds the rewritten resources by kind.
	Table *k8s.Table

	// Stages lists the chartifier stages that ran, in order.
	Stages []string

	// Changes and Warnings are reported by the chartifier stages.
	Changes  []chartify.Change
	Warnings []string

	// ImageKeys are the image override keys added to values.yaml.
	ImageKeys []string

	preserve []string
}

// Save writes the chart below outDir and returns the chart directory.
func (r *Result) Save(ctx context.Context, outDir string) (string, error) {
	return assembler.Save(ctx, r.Chart, outDir, r.preserve)
}

// Files returns the generated chart files keyed by their path inside the
// chart, for printing and diffing.
func (r *Result) Files() map[string][]byte {
	files := map[string][]byte{}

	for _, f := range r.Chart.Templates {
		files[f.Name] = f.Data
	}

	for _, f := range r.Chart.Files {
		files[f.Name] = f.Data
	}

	for _, f := range r.Chart.Raw {
		if f.Name == "values.yaml" {
			files[f.Name] = f.Data
		}
	}

	return files
}

// FileNames returns the keys of Files, sorted.
func (r *Result) FileNames() []string {
	files := r.Files()

	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

// Convert turns the bundle at bundleDir into a Helm chart.
func Convert(ctx context.Context, bundleDir string, opts ...Option) (*Result, error) {
	if bundleDir == "" {
		return nil, errors.New("bundle directory must not be empty")
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx = logging.NewContext(ctx, o.logger)

	tgt, err := o.resolveTarget()
	if err != nil {
		return nil, err
	}

	// 1. Load and expand the bundle.
	b, err := bundle.Load(ctx, bundleDir, bundle.Options{ExtraPaths: tgt.WebhookPaths})
	if err != nil {
		return nil, fmt.Errorf("loading bundle: %w", err)
	}

	// 2. Classify against the allow-list.
	table, err := classify.Classify(ctx, b.Resources, tgt.AllowList())
	if err != nil {
		return nil, err
	}

	// 3. Rewrite resources.
	g := gate.New(tgt.Branch,
		gate.WithReleaseVersion(o.acmVersion),
		gate.WithBackplaneVersion(o.mceVersion),
		gate.WithLogger(o.logger),
	)

	pipeline := chartify.New(chartify.Options{Target: tgt, Gate: g})

	rewritten, err := pipeline.Run(ctx, table)
	if err != nil {
		return nil, err
	}

	// 4. Assemble the chart.
	ch, err := loader.NewMultiLoader().Load(ctx, o.skeleton, loader.LoadOptions{})
	if err != nil {
		return nil, fmt.Errorf("loading chart skeleton: %w", err)
	}

	meta := &chartmeta.ChartMeta{
		Name:        tgt.Name,
		AppVersion:  b.Version(),
		Description: b.Description(),
	}

	if err := meta.Apply(ch); err != nil {
		return nil, fmt.Errorf("chart metadata: %w", err)
	}

	asm := assembler.New(assembler.Options{
		Sizes: tgt.Sizes,
		Flow: assembler.FlowOptions{
			Replicas:           g.Allows(tgt.Gates.Threshold(tgt.Gates.Replicas, gate.Replicas)),
			DeployOnOCP:        g.Allows(tgt.Gates.Threshold(tgt.Gates.DeployOnOCP, gate.DeployOnOCP)),
			PullSecretOverride: tgt.Includes(config.FeaturePullSecretOverride),
		},
		EscapeVariables: tgt.EscapeTemplateVariables,
	})

	keys := rewritten.Values.Keys()

	if err := asm.Build(ctx, ch, table, keys); err != nil {
		return nil, fmt.Errorf("assembling chart: %w", err)
	}

	// 5. Optionally render the result.
	if o.verify {
		if err := verify(ctx, ch, o.values); err != nil {
			return nil, err
		}
	}

	o.logger.Info("bundle converted",
		slog.String("chart", ch.Name()),
		slog.Int("resources", table.Len()),
		slog.Int("imageKeys", len(keys)),
		slog.Int("warnings", len(rewritten.Warnings)),
	)

	return &Result{
		Chart:     ch,
		Table:     table,
		Stages:    pipeline.Stages(),
		Changes:   rewritten.Changes,
		Warnings:  rewritten.Warnings,
		ImageKeys: keys,
		preserve:  tgt.PreserveFiles,
	}, nil
}

func (o *options) resolveTarget() (*config.Target, error) {
	tgt := o.target

	if o.targetFile != "" {
		loaded, err := config.LoadTarget(o.targetFile)
		if err != nil {
			return nil, err
		}

		tgt = loaded
	}

	if tgt == nil {
		tgt = &config.Target{}
	}

	// Work on a copy so overrides never leak into the caller's value.
	c := *tgt

	if o.chartName != "" {
		c.Name = o.chartName
	}

	if o.branch != "" {
		c.Branch = o.branch
	}

	if o.sizes != nil {
		c.Sizes = o.sizes
	}

	if c.Name == "" {
		return nil, errors.New("chart name is required")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func verify(ctx context.Context, ch *chart.Chart, vopts renderer.ValuesOptions) error {
	vals, err := renderer.MergeValues(ch, vopts)
	if err != nil {
		return fmt.Errorf("verify values: %w", err)
	}

	n, err := renderer.New(renderer.DefaultRenderOptions()).Verify(ctx, ch, vals)
	if err != nil {
		return fmt.Errorf("verifying chart: %w", err)
	}

	logging.FromContext(ctx).Debug("chart verified", slog.Int("documents", n))

	return nil
}
