// Package chartify rewrites classified bundle resources into Helm-ready
// form.
//
// Each rewrite is a [Stage] applied to the whole resource table before the
// next one starts. The fixed order is namespace templating, image
// templating, RBAC renaming, security normalization and deployment
// standardization. Version-dependent stages are only added to the
// [Pipeline] when the target release passes their gate.
package chartify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
	"github.com/stolostron/installer-dev-tools-sub000/internal/gate"
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
)

// Values paths referenced from rewritten resources.
const (
	// DefaultNamespaceExpr is the chart-wide namespace expression.
	DefaultNamespaceExpr = "{{ .Values.global.namespace }}"

	// DefaultEnvSuffix marks environment variables that carry image references.
	DefaultEnvSuffix = "_IMAGE"

	// PlaceholderNamespace is the bundle convention for "install namespace".
	PlaceholderNamespace = "PLACEHOLDER_NAMESPACE"

	pullPolicyExpr = "{{ .Values.global.pullPolicy }}"
)

// Change records a single modification made by a stage.
type Change struct {
	ResourceID string `json:"resourceId"`
	FieldPath  string `json:"fieldPath"`
	OldValue   string `json:"oldValue,omitempty"`
	NewValue   string `json:"newValue"`
	Reason     string `json:"reason"`
}

// Result holds the outcome of a pipeline run.
type Result struct {
	// Changes is the list of modifications made, in stage order.
	Changes []Change

	// Warnings are non-fatal issues such as preserved non-default seccomp
	// profiles.
	Warnings []string

	// Values collects the image override keys referenced by the chart.
	Values *ValuesManifest
}

func (r *Result) change(resID, fieldPath string, oldValue, newValue interface{}, reason string) {
	c := Change{
		ResourceID: resID,
		FieldPath:  fieldPath,
		NewValue:   fmt.Sprintf("%v", newValue),
		Reason:     reason,
	}

	if oldValue != nil {
		c.OldValue = fmt.Sprintf("%v", oldValue)
	}

	r.Changes = append(r.Changes, c)
}

func (r *Result) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Stage is a single rewrite applied to the whole table.
type Stage interface {
	// Name returns the stage name for logging and reporting.
	Name() string

	// Apply rewrites the resources of table in place.
	Apply(ctx context.Context, table *k8s.Table, result *Result) error
}

// Options configures a Pipeline.
type Options struct {
	// Target holds the per-bundle settings. Required.
	Target *config.Target

	// Gate decides version-dependent stages. Nil builds a gate from
	// Target.Branch.
	Gate *gate.Gate

	// ChartName is used by the chart RBAC naming mode. Defaults to
	// Target.Name.
	ChartName string

	// NamespaceExpr defaults to DefaultNamespaceExpr.
	NamespaceExpr string

	// EnvSuffix defaults to DefaultEnvSuffix.
	EnvSuffix string

	// Affinity is the pod affinity template given to every Deployment. Nil
	// uses DefaultAffinity.
	Affinity map[string]interface{}
}

// Pipeline orchestrates the stages.
type Pipeline struct {
	stages []Stage
}

// New creates a Pipeline configured according to opts.
func New(opts Options) *Pipeline {
	tgt := opts.Target
	if tgt == nil {
		tgt = &config.Target{}
	}

	g := opts.Gate
	if g == nil {
		g = gate.New(tgt.Branch)
	}

	chartName := opts.ChartName
	if chartName == "" {
		chartName = tgt.Name
	}

	var stages []Stage

	if g.Allows(tgt.Gates.Threshold(tgt.Gates.NamespaceTemplating, gate.NamespaceTemplating)) {
		stages = append(stages, NewNamespaceStage(opts.NamespaceExpr, tgt.Exclusions))
	}

	stages = append(stages, NewImageStage(tgt.ImageMappings, opts.EnvSuffix))

	if !tgt.SkipRBAC() {
		stages = append(stages, NewRBACStage(NewQualifier(tgt.RBACNaming, chartName)))
	}

	if g.Allows(tgt.Gates.Threshold(tgt.Gates.SecurityContexts, gate.SecurityContexts)) {
		stages = append(stages, NewSecurityStage(tgt.SecurityContextConstraints, !tgt.Excludes(config.FeatureReadOnlyRootFilesystem)))
	}

	stages = append(stages, NewDeploymentStage(tgt, opts.Affinity))

	return &Pipeline{stages: stages}
}

// NewWithStages creates a Pipeline running exactly the given stages.
func NewWithStages(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Stages returns the names of the configured stages in run order.
func (p *Pipeline) Stages() []string {
	names := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		names = append(names, s.Name())
	}

	return names
}

// Run applies every stage to table in order.
func (p *Pipeline) Run(ctx context.Context, table *k8s.Table) (*Result, error) {
	result := &Result{Values: NewValuesManifest()}

	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stageCtx := logging.WithStage(ctx, s.Name())

		changes, warnings := len(result.Changes), len(result.Warnings)

		if err := s.Apply(stageCtx, table, result); err != nil {
			return nil, fmt.Errorf("stage %s: %w", s.Name(), err)
		}

		logging.FromContext(stageCtx).Debug("stage complete",
			slog.Int("changes", len(result.Changes)-changes),
			slog.Int("warnings", len(result.Warnings)-warnings),
		)
	}

	return result, nil
}
