package chartify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
	"github.com/stolostron/installer-dev-tools-sub000/internal/maputil"
)

const (
	deploymentReason = "deployment standardization"

	// AntiAffinityLabel is the pod label the default anti-affinity selects on.
	AntiAffinityLabel = "ocm-antiaffinity-selector"

	// ResourcesPlaceholderPrefix marks containers whose resources are
	// rendered per hub size by the flow-control injector.
	ResourcesPlaceholderPrefix = "REPLACE-"
)

// DefaultAffinity returns the pod anti-affinity given to every Deployment.
// Each term's first match value is replaced with the Deployment name.
func DefaultAffinity() map[string]interface{} {
	term := func(weight int64, topologyKey string) map[string]interface{} {
		return map[string]interface{}{
			"weight": weight,
			"podAffinityTerm": map[string]interface{}{
				"topologyKey": topologyKey,
				"labelSelector": map[string]interface{}{
					"matchExpressions": []interface{}{
						map[string]interface{}{
							"key":      AntiAffinityLabel,
							"operator": "In",
							"values":   []interface{}{"REPLACE"},
						},
					},
				},
			},
		}
	}

	return map[string]interface{}{
		"podAntiAffinity": map[string]interface{}{
			"preferredDuringSchedulingIgnoredDuringExecution": []interface{}{
				term(70, "topology.kubernetes.io/zone"),
				term(35, "kubernetes.io/hostname"),
			},
		},
	}
}

// DeploymentStage gives every Deployment the hub scheduling defaults and
// places the empty anchors the flow-control injector later expands.
type DeploymentStage struct {
	sizes     *config.Sizes
	affinity  map[string]interface{}
	automount *bool
	invalid   interface{}
}

// NewDeploymentStage creates the deployment standardizer. A nil affinity
// uses DefaultAffinity.
func NewDeploymentStage(tgt *config.Target, affinity map[string]interface{}) *DeploymentStage {
	if affinity == nil {
		affinity = DefaultAffinity()
	}

	s := &DeploymentStage{sizes: tgt.Sizes, affinity: affinity}

	switch value, ok, valid := tgt.AutomountToken(); {
	case ok && valid:
		s.automount = &value
	case ok:
		s.invalid = tgt.AutomountServiceAccountToken
	}

	return s
}

// Name returns the stage name.
func (s *DeploymentStage) Name() string {
	return "deployment"
}

// Apply standardizes every Deployment. Containers of a sized Deployment
// that have no size entry are collected into a MissingSizeTierError.
func (s *DeploymentStage) Apply(ctx context.Context, table *k8s.Table, result *Result) error {
	logger := logging.FromContext(ctx)

	if s.invalid != nil {
		logger.Warn("automountServiceAccountToken should be a boolean, ignoring", slog.Any("value", s.invalid))
		result.warn("automountServiceAccountToken %v is not a boolean and was ignored", s.invalid)
	}

	var gaps []config.SizeGap

	for _, res := range table.Get(k8s.KindDeployment) {
		gaps = append(gaps, s.standardize(res, result)...)
	}

	if len(gaps) > 0 {
		return &config.MissingSizeTierError{Gaps: gaps}
	}

	return nil
}

func (s *DeploymentStage) standardize(res *k8s.Resource, result *Result) []config.SizeGap {
	resID := res.QualifiedName()
	name := res.Name

	spec := k8s.GetOrCreateMap(res.Object.Object, "spec")
	template := k8s.GetOrCreateMap(spec, "template")
	podSpec := k8s.GetOrCreateMap(template, "spec")

	labels := k8s.GetOrCreateMap(k8s.GetOrCreateMap(template, "metadata"), "labels")
	set(labels, AntiAffinityLabel, name, resID, "spec.template.metadata.labels."+AntiAffinityLabel, deploymentReason, result)

	set(podSpec, "affinity", s.affinityFor(name), resID, "spec.template.spec.affinity", deploymentReason, result)

	for _, key := range []string{"tolerations", "nodeSelector", "imagePullSecrets"} {
		set(podSpec, key, "", resID, "spec.template.spec."+key, deploymentReason, result)
	}

	for _, key := range []string{"hostNetwork", "hostPID", "hostIPC"} {
		set(podSpec, key, false, resID, "spec.template.spec."+key, deploymentReason, result)
	}

	if s.automount != nil {
		set(podSpec, "automountServiceAccountToken", *s.automount, resID, "spec.template.spec.automountServiceAccountToken", deploymentReason, result)
	}

	sized := s.sizes.Deployment(name)
	if sized == nil {
		return nil
	}

	var gaps []config.SizeGap

	for i, c := range k8s.Containers(podSpec, "containers") {
		cname, _ := c["name"].(string)

		if sized.Container(cname) == nil {
			gaps = append(gaps, config.SizeGap{Deployment: name, Container: cname})
			continue
		}

		set(c, "resources", ResourcesPlaceholderPrefix+cname, resID,
			fmt.Sprintf("spec.template.spec.containers[%d].resources", i), deploymentReason, result)
	}

	return gaps
}

// affinityFor returns a copy of the affinity template bound to name.
func (s *DeploymentStage) affinityFor(name string) map[string]interface{} {
	affinity := maputil.DeepCopyMap(s.affinity)

	anti, _ := affinity["podAntiAffinity"].(map[string]interface{})
	terms, _ := anti["preferredDuringSchedulingIgnoredDuringExecution"].([]interface{})

	for _, t := range terms {
		term, _ := t.(map[string]interface{})
		podAffinityTerm, _ := term["podAffinityTerm"].(map[string]interface{})
		selector, _ := podAffinityTerm["labelSelector"].(map[string]interface{})
		exprs, _ := selector["matchExpressions"].([]interface{})

		if len(exprs) == 0 {
			continue
		}

		expr, _ := exprs[0].(map[string]interface{})
		if values, ok := expr["values"].([]interface{}); ok && len(values) > 0 {
			values[0] = name
		}
	}

	return affinity
}
