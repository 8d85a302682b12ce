package chartify

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
)

const (
	namespaceReason = "namespace templating"

	injectCAAnnotation = "cert-manager.io/inject-ca-from"
)

// subjectKinds are the binding subject kinds whose namespace is templated.
var subjectKinds = map[string]bool{"ServiceAccount": true, "User": true, "Group": true}

// NamespaceStage replaces namespace fields with the chart namespace
// expression, keeping concrete bundle namespaces as defaults.
type NamespaceStage struct {
	expr       string
	exclusions []string
}

// NewNamespaceStage creates the namespace templater. Kinds listed in
// exclusions are left alone.
func NewNamespaceStage(expr string, exclusions []string) *NamespaceStage {
	if expr == "" {
		expr = DefaultNamespaceExpr
	}

	return &NamespaceStage{expr: expr, exclusions: exclusions}
}

// Name returns the stage name.
func (s *NamespaceStage) Name() string {
	return "namespace"
}

// Apply templates every namespace field in the table. It never fails.
func (s *NamespaceStage) Apply(_ context.Context, table *k8s.Table, result *Result) error {
	for _, res := range table.All() {
		s.templateObject(res.Object.Object, res.Kind(), res.QualifiedName(), "", result)
	}

	return nil
}

// Template returns the templated form of ns.
func (s *NamespaceStage) Template(ns string) string {
	switch {
	case ns == "" || ns == PlaceholderNamespace || ns == s.expr:
		return s.expr
	case k8s.IsTemplated(ns):
		return ns
	default:
		return defaultNamespaceExpr(ns)
	}
}

func defaultNamespaceExpr(ns string) string {
	return fmt.Sprintf(`{{ default %q .Values.global.namespace }}`, ns)
}

// isConcrete reports whether ns names a real namespace.
func isConcrete(ns string) bool {
	return ns != "" && ns != PlaceholderNamespace && !k8s.IsTemplated(ns)
}

func (s *NamespaceStage) set(m map[string]interface{}, key, resID, fieldPath string, result *Result) {
	old, _ := m[key].(string)

	next := s.Template(old)
	if next == old {
		return
	}

	m[key] = next

	var oldValue interface{}
	if old != "" {
		oldValue = old
	}

	result.change(resID, fieldPath, oldValue, next, namespaceReason)
}

func (s *NamespaceStage) templateObject(obj map[string]interface{}, kind, resID, prefix string, result *Result) {
	if slices.Contains(s.exclusions, kind) {
		return
	}

	metadata, _ := obj["metadata"].(map[string]interface{})
	original, _ := metadata["namespace"].(string)

	switch {
	case kind == k8s.KindCertificate:
		s.certificate(obj, original, resID, prefix, result)
	case k8s.IsBindingKind(kind):
		s.subjects(obj, resID, prefix, result)
	case k8s.IsWebhookConfigKind(kind):
		s.webhooks(obj, resID, prefix, result)
	case kind == k8s.KindCRD:
		s.crd(obj, resID, prefix, result)
	case kind == k8s.KindClusterManagementAddOn:
		s.supportedConfigs(obj, resID, prefix, result)
	case kind == k8s.KindAddOnTemplate:
		for i, m := range k8s.NestedManifests(obj) {
			s.templateObject(m, k8s.KindOf(m), resID, fmt.Sprintf("%sspec.agentSpec.workload.manifests[%d].", prefix, i), result)
		}
	}

	if k8s.IsNamespaced(kind) {
		s.set(k8s.GetOrCreateMap(obj, "metadata"), "namespace", resID, prefix+"metadata.namespace", result)
	}
}

// certificate rewrites ".<ns>." segments of the common name and DNS names.
// Only a concrete namespace can be recognised inside a host name.
func (s *NamespaceStage) certificate(obj map[string]interface{}, ns, resID, prefix string, result *Result) {
	if !isConcrete(ns) {
		return
	}

	spec, ok := obj["spec"].(map[string]interface{})
	if !ok {
		return
	}

	segment := "." + ns + "."
	replacement := "." + defaultNamespaceExpr(ns) + "."

	if cn, ok := spec["commonName"].(string); ok && strings.Contains(cn, segment) {
		spec["commonName"] = strings.ReplaceAll(cn, segment, replacement)
		result.change(resID, prefix+"spec.commonName", cn, spec["commonName"], namespaceReason)
	}

	names, _ := spec["dnsNames"].([]interface{})
	for i, n := range names {
		name, ok := n.(string)
		if !ok || !strings.Contains(name, segment) {
			continue
		}

		names[i] = strings.ReplaceAll(name, segment, replacement)
		result.change(resID, fmt.Sprintf("%sspec.dnsNames[%d]", prefix, i), name, names[i], namespaceReason)
	}
}

// subjects templates the namespace of every user-like subject, regardless
// of the binding's own namespace.
func (s *NamespaceStage) subjects(obj map[string]interface{}, resID, prefix string, result *Result) {
	list, _ := obj["subjects"].([]interface{})

	for i, item := range list {
		subject, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		if kind, _ := subject["kind"].(string); !subjectKinds[kind] {
			continue
		}

		s.set(subject, "namespace", resID, fmt.Sprintf("%ssubjects[%d].namespace", prefix, i), result)
	}
}

func (s *NamespaceStage) webhooks(obj map[string]interface{}, resID, prefix string, result *Result) {
	list, _ := obj["webhooks"].([]interface{})

	for i, item := range list {
		webhook, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		clientConfig, _ := webhook["clientConfig"].(map[string]interface{})

		service, ok := clientConfig["service"].(map[string]interface{})
		if !ok {
			continue
		}

		s.set(service, "namespace", resID, fmt.Sprintf("%swebhooks[%d].clientConfig.service.namespace", prefix, i), result)
	}
}

// crd templates the conversion webhook service and the CA injection
// annotation.
func (s *NamespaceStage) crd(obj map[string]interface{}, resID, prefix string, result *Result) {
	spec, _ := obj["spec"].(map[string]interface{})
	conversion, _ := spec["conversion"].(map[string]interface{})

	if strategy, _ := conversion["strategy"].(string); strategy == "Webhook" {
		webhook, _ := conversion["webhook"].(map[string]interface{})
		clientConfig, _ := webhook["clientConfig"].(map[string]interface{})

		if service, ok := clientConfig["service"].(map[string]interface{}); ok {
			s.set(service, "namespace", resID, prefix+"spec.conversion.webhook.clientConfig.service.namespace", result)
		}
	}

	metadata, _ := obj["metadata"].(map[string]interface{})
	annotations, _ := metadata["annotations"].(map[string]interface{})

	value, ok := annotations[injectCAAnnotation].(string)
	if !ok {
		return
	}

	ns, name, found := strings.Cut(value, "/")
	if !found || !isConcrete(ns) {
		return
	}

	annotations[injectCAAnnotation] = defaultNamespaceExpr(ns) + "/" + name
	result.change(resID, prefix+"metadata.annotations."+injectCAAnnotation, value, annotations[injectCAAnnotation], namespaceReason)
}

func (s *NamespaceStage) supportedConfigs(obj map[string]interface{}, resID, prefix string, result *Result) {
	spec, _ := obj["spec"].(map[string]interface{})
	list, _ := spec["supportedConfigs"].([]interface{})

	for i, item := range list {
		cfg, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		defaultConfig, ok := cfg["defaultConfig"].(map[string]interface{})
		if !ok {
			continue
		}

		if _, has := defaultConfig["namespace"]; !has {
			continue
		}

		s.set(defaultConfig, "namespace", resID, fmt.Sprintf("%sspec.supportedConfigs[%d].defaultConfig.namespace", prefix, i), result)
	}
}
