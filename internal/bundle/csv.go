package bundle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/maputil"
)

// Install strategy sections the expander understands.
const (
	sectionDeployments        = "deployments"
	sectionClusterPermissions = "clusterPermissions"
	sectionPermissions        = "permissions"
	sectionCRDs               = "customResourceDefinitions"
)

var supportedSections = map[string]bool{
	sectionDeployments:        true,
	sectionClusterPermissions: true,
	sectionPermissions:        true,
	sectionCRDs:               true,
}

const rbacAPIVersion = "rbac.authorization.k8s.io/v1"

// UnsupportedSectionError lists install strategy sections that cannot be
// expanded.
type UnsupportedSectionError struct {
	Source   string
	Sections []string
}

func (e *UnsupportedSectionError) Error() string {
	return fmt.Sprintf("unsupported install strategy sections in %s: %s", e.Source, strings.Join(e.Sections, ", "))
}

// ExpandCSV turns the install strategy of csv into Deployment,
// ServiceAccount, (Cluster)Role and (Cluster)RoleBinding resources.
// Deployments come first, then cluster-scoped RBAC, then namespaced RBAC.
func ExpandCSV(csv *k8s.Resource) ([]*k8s.Resource, error) {
	install := maputil.NestedMap(csv.Object.Object, "spec", "install", "spec")
	if install == nil {
		return nil, nil
	}

	var unsupported []string

	for section := range install {
		if !supportedSections[section] {
			unsupported = append(unsupported, section)
		}
	}

	if len(unsupported) > 0 {
		sort.Strings(unsupported)
		return nil, &UnsupportedSectionError{Source: csv.SourcePath, Sections: unsupported}
	}

	x := &expander{source: csv.SourcePath, serviceAccounts: map[string]bool{}}

	x.section(install, sectionDeployments, x.deployment)
	x.section(install, sectionClusterPermissions, x.clusterPermission)
	x.section(install, sectionPermissions, x.permission)

	return x.out, nil
}

type expander struct {
	source          string
	out             []*k8s.Resource
	serviceAccounts map[string]bool
}

func (x *expander) section(install map[string]interface{}, name string, fn func(string, map[string]interface{})) {
	items, _ := install[name].([]interface{})

	for i, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		fn(fmt.Sprintf("%s#%s[%d]", x.source, name, i), m)
	}
}

func (x *expander) add(source string, obj map[string]interface{}) {
	x.out = append(x.out, k8s.NewResource(obj, source))
}

func (x *expander) deployment(source string, item map[string]interface{}) {
	name, _ := item["name"].(string)
	spec, _ := item["spec"].(map[string]interface{})
	spec = maputil.DeepCopyMap(spec)

	// imagePullPolicy is a container field; a stray pod-level one is invalid.
	if podSpec := maputil.NestedMap(spec, "template", "spec"); podSpec != nil {
		delete(podSpec, "imagePullPolicy")
	}

	metadata := map[string]interface{}{"name": name}
	if labels, ok := item["label"].(map[string]interface{}); ok {
		metadata["labels"] = maputil.DeepCopyMap(labels)
	}

	x.add(source, map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       k8s.KindDeployment,
		"metadata":   metadata,
		"spec":       spec,
	})
}

func (x *expander) clusterPermission(source string, item map[string]interface{}) {
	x.rbac(source, item, k8s.KindClusterRole, k8s.KindClusterRoleBinding)
}

func (x *expander) permission(source string, item map[string]interface{}) {
	x.rbac(source, item, k8s.KindRole, k8s.KindRoleBinding)
}

// rbac emits a role, its service account (once per name) and the binding
// between them, all named after the service account.
func (x *expander) rbac(source string, item map[string]interface{}, roleKind, bindingKind string) {
	sa, _ := item["serviceAccountName"].(string)
	rules, _ := item["rules"].([]interface{})

	if rules == nil {
		rules = []interface{}{}
	}

	x.add(source, map[string]interface{}{
		"apiVersion": rbacAPIVersion,
		"kind":       roleKind,
		"metadata":   map[string]interface{}{"name": sa},
		"rules":      maputil.DeepCopySlice(rules),
	})

	if !x.serviceAccounts[sa] {
		x.serviceAccounts[sa] = true

		x.add(source, map[string]interface{}{
			"apiVersion": "v1",
			"kind":       k8s.KindServiceAccount,
			"metadata":   map[string]interface{}{"name": sa},
		})
	}

	x.add(source, map[string]interface{}{
		"apiVersion": rbacAPIVersion,
		"kind":       bindingKind,
		"metadata":   map[string]interface{}{"name": sa},
		"roleRef": map[string]interface{}{
			"apiGroup": "rbac.authorization.k8s.io",
			"kind":     roleKind,
			"name":     sa,
		},
		"subjects": []interface{}{
			map[string]interface{}{"kind": "ServiceAccount", "name": sa},
		},
	})
}
