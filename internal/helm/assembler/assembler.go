// Package assembler turns a rewritten resource table into a Helm chart.
//
// Every resource becomes one file named after its name and kind. CRDs go to
// crds/, everything else to templates/. Deployments pass through the
// flow-control injector after serialization, AddOnTemplates get their
// template variables escaped. The image override keys are merged into the
// skeleton's values.yaml without disturbing its layout.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"

	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
	"github.com/stolostron/installer-dev-tools-sub000/internal/flowctl"
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
	"github.com/stolostron/installer-dev-tools-sub000/internal/output"
)

// Chart directories resources are routed to.
const (
	TemplatesDir = "templates"
	CRDsDir      = "crds"
)

// FlowOptions selects the gated flow-control injections.
type FlowOptions struct {
	Replicas           bool
	DeployOnOCP        bool
	PullSecretOverride bool
}

// Options configures an Assembler.
type Options struct {
	// Sizes is the container size table. Deployments without an entry keep
	// their resources as they are.
	Sizes *config.Sizes

	Flow FlowOptions

	// EscapeVariables are the AddOnTemplate placeholders protected from
	// Helm rendering.
	EscapeVariables []string

	Serialize output.SerializeOptions
}

// Assembler adds rewritten resources to a chart skeleton.
type Assembler struct {
	opts Options
}

// New creates an Assembler.
func New(opts Options) *Assembler {
	if opts.Serialize.Indent == 0 {
		opts.Serialize = output.DefaultSerializeOptions()
	}

	return &Assembler{opts: opts}
}

// Build adds one file per resource of table to ch and merges keys into
// global.imageOverrides of its values.yaml. Size gaps of all Deployments
// are reported together as a *config.MissingSizeTierError.
func (a *Assembler) Build(ctx context.Context, ch *chart.Chart, table *k8s.Table, keys []string) error {
	logger := logging.FromContext(ctx)

	var gaps []config.SizeGap

	owners := map[string]string{}

	for _, res := range table.All() {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := a.render(res)
		if err != nil {
			var sizeErr *config.MissingSizeTierError
			if errors.As(err, &sizeErr) {
				gaps = append(gaps, sizeErr.Gaps...)
				continue
			}

			return fmt.Errorf("%s: %w", res.QualifiedName(), err)
		}

		name := TemplatesDir + "/" + res.FileName()
		if res.Kind() == k8s.KindCRD {
			name = CRDsDir + "/" + res.FileName()
		}

		if owner, ok := owners[name]; ok {
			return fmt.Errorf("%s and %s both map to %s", owner, res.QualifiedName(), name)
		}

		owners[name] = res.QualifiedName()

		if res.Kind() == k8s.KindCRD {
			ch.Files = putFile(ch.Files, name, data)
		} else {
			ch.Templates = putFile(ch.Templates, name, data)
		}

		logger.Debug("added chart file", slog.String("file", name), slog.String("resource", res.QualifiedName()))
	}

	if len(gaps) > 0 {
		return &config.MissingSizeTierError{Gaps: gaps}
	}

	return a.mergeValues(ch, keys)
}

func (a *Assembler) render(res *k8s.Resource) ([]byte, error) {
	data, err := output.Serialize(res.Object.Object, a.opts.Serialize)
	if err != nil {
		return nil, err
	}

	switch res.Kind() {
	case k8s.KindDeployment:
		out, err := flowctl.Inject(flowctl.NewLines(string(data)), flowctl.Options{
			Sizes:              a.opts.Sizes.Deployment(res.Name),
			Deployment:         res.Name,
			Replicas:           a.opts.Flow.Replicas,
			DeployOnOCP:        a.opts.Flow.DeployOnOCP,
			PullSecretOverride: a.opts.Flow.PullSecretOverride,
		})
		if err != nil {
			return nil, err
		}

		return []byte(out.String()), nil
	case k8s.KindAddOnTemplate:
		return []byte(flowctl.EscapeVariables(string(data), a.opts.EscapeVariables)), nil
	default:
		return data, nil
	}
}

func (a *Assembler) mergeValues(ch *chart.Chart, keys []string) error {
	i := slices.IndexFunc(ch.Raw, func(f *chart.File) bool { return f.Name == chartutil.ValuesfileName })
	if i < 0 {
		ch.Raw = append(ch.Raw, &chart.File{Name: chartutil.ValuesfileName})
		i = len(ch.Raw) - 1
	}

	merged, err := MergeImageOverrides(ch.Raw[i].Data, keys)
	if err != nil {
		return err
	}

	values, err := chartutil.ReadValues(merged)
	if err != nil {
		return fmt.Errorf("reading merged values: %w", err)
	}

	ch.Raw[i].Data = merged
	ch.Values = values

	return nil
}

// putFile replaces the file called name in files, or appends it.
func putFile(files []*chart.File, name string, data []byte) []*chart.File {
	for _, f := range files {
		if f.Name == name {
			f.Data = data
			return files
		}
	}

	return append(files, &chart.File{Name: name, Data: data})
}
