// Package renderer renders a generated chart in-memory with the Helm SDK
// engine. It is used to check that the injected control flow produces
// valid manifests before a chart is written.
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"
	"helm.sh/helm/v3/pkg/engine"
	"k8s.io/apimachinery/pkg/util/yaml"

	"github.com/stolostron/installer-dev-tools-sub000/internal/yamlutil"
)

// Renderer renders chart templates into raw Kubernetes YAML manifests.
type Renderer interface {
	Render(ctx context.Context, ch *chart.Chart, vals map[string]interface{}) ([]byte, error)
}

// RenderOptions configures rendering behaviour.
type RenderOptions struct {
	ReleaseName string
	Namespace   string
	Strict      bool
}

// DefaultRenderOptions returns sensible defaults.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		ReleaseName: "release",
		Namespace:   "default",
	}
}

// HelmRenderer implements Renderer using the Helm SDK engine.
type HelmRenderer struct {
	opts RenderOptions
}

// New creates a HelmRenderer with the given options.
func New(opts RenderOptions) *HelmRenderer {
	if opts.ReleaseName == "" {
		opts.ReleaseName = "release"
	}

	if opts.Namespace == "" {
		opts.Namespace = "default"
	}

	return &HelmRenderer{opts: opts}
}

// Render executes the chart templates and returns the combined YAML output.
func (r *HelmRenderer) Render(ctx context.Context, ch *chart.Chart, vals map[string]interface{}) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("rendering cancelled: %w", ctx.Err())
	default:
	}

	options := chartutil.ReleaseOptions{
		Name:      r.opts.ReleaseName,
		Namespace: r.opts.Namespace,
		Revision:  1,
		IsInstall: true,
	}

	valuesToRender, err := chartutil.ToRenderValues(ch, vals, options, nil)
	if err != nil {
		return nil, fmt.Errorf("preparing render values: %w", err)
	}

	eng := engine.Engine{Strict: r.opts.Strict}

	rendered, err := eng.Render(ch, valuesToRender)
	if err != nil {
		return nil, fmt.Errorf("rendering templates: %w", err)
	}

	return combineManifests(rendered), nil
}

// Verify renders ch and checks that every produced document is valid
// YAML. It returns the number of rendered documents.
func (r *HelmRenderer) Verify(ctx context.Context, ch *chart.Chart, vals map[string]interface{}) (int, error) {
	out, err := r.Render(ctx, ch, vals)
	if err != nil {
		return 0, err
	}

	docs := yamlutil.SplitDocuments(out)

	for i, doc := range docs {
		var obj map[string]interface{}
		if err := yaml.Unmarshal(doc, &obj); err != nil {
			return 0, fmt.Errorf("rendered document %d is not valid YAML: %w", i, err)
		}
	}

	return len(docs), nil
}

// combineManifests merges rendered templates into a single multi-document YAML.
func combineManifests(rendered map[string]string) []byte {
	keys := make([]string, 0, len(rendered))
	for k := range rendered {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	var buf bytes.Buffer

	for _, k := range keys {
		if strings.HasSuffix(k, "NOTES.txt") {
			continue
		}

		trimmed := strings.TrimSpace(rendered[k])
		if trimmed == "" {
			continue
		}

		if buf.Len() > 0 {
			buf.WriteString("---\n")
		}

		buf.WriteString(trimmed)
		buf.WriteByte('\n')
	}

	return buf.Bytes()
}
