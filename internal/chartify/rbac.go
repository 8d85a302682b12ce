package chartify

import (
	"context"
	"strings"

	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
)

// rbacPrefix qualifies RBAC names with the organisation and chart.
const rbacPrefix = "{{ .Values.org }}:{{ .Chart.Name }}:"

// Qualifier maps an RBAC object name to its chart-qualified form.
type Qualifier func(name string) string

// NewQualifier returns the qualifier for mode. The chart mode collapses
// every name to the chart name; any other mode keeps the original name.
func NewQualifier(mode, chartName string) Qualifier {
	return func(name string) string {
		if strings.HasPrefix(name, rbacPrefix) {
			return name
		}

		if mode == config.RBACNamingChart {
			return rbacPrefix + chartName
		}

		return rbacPrefix + name
	}
}

// RBACStage renames roles and bindings so several charts can install the
// same bundle RBAC side by side.
type RBACStage struct {
	qualify Qualifier
}

// NewRBACStage creates the RBAC renamer.
func NewRBACStage(q Qualifier) *RBACStage {
	return &RBACStage{qualify: q}
}

// Name returns the stage name.
func (s *RBACStage) Name() string {
	return "rbac"
}

// Apply renames every Role, ClusterRole and binding. Bindings have their
// roleRef renamed through the same qualifier so the reference stays valid.
func (s *RBACStage) Apply(_ context.Context, table *k8s.Table, result *Result) error {
	for _, res := range table.All() {
		kind := res.Kind()
		if !k8s.IsRoleKind(kind) && !k8s.IsBindingKind(kind) {
			continue
		}

		obj := res.Object.Object
		resID := res.QualifiedName()

		metadata := k8s.GetOrCreateMap(obj, "metadata")
		s.rename(metadata, resID, "metadata.name", result)

		if k8s.IsBindingKind(kind) {
			if roleRef, ok := obj["roleRef"].(map[string]interface{}); ok {
				s.rename(roleRef, resID, "roleRef.name", result)
			}
		}
	}

	return nil
}

func (s *RBACStage) rename(m map[string]interface{}, resID, fieldPath string, result *Result) {
	old, _ := m["name"].(string)

	next := s.qualify(old)
	if next == old {
		return
	}

	m["name"] = next
	result.change(resID, fieldPath, old, next, "rbac qualification")
}
