package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"

	sigsyaml "sigs.k8s.io/yaml"

	"github.com/stolostron/installer-dev-tools-sub000/internal/gate"
)

// Feature names accepted in the exclusions and inclusions lists.
const (
	FeatureReadOnlyRootFilesystem = "readOnlyRootFilesystem"
	FeaturePullSecretOverride     = "pullSecretOverride"
)

// RBAC naming modes.
const (
	// RBACNamingPrefix keeps the original name after the qualifier.
	RBACNamingPrefix = "prefix"
	// RBACNamingChart replaces the original name with the chart name.
	RBACNamingChart = "chart"
)

// AllowListVersion identifies the built-in kind allow-list revision.
const AllowListVersion = "v1"

// defaultAllowedKinds are the bundle kinds the chartifier knows how to handle.
var defaultAllowedKinds = []string{
	// produced from the ClusterServiceVersion install strategy
	"Deployment", "ServiceAccount",
	"ClusterRole", "ClusterRoleBinding", "Role", "RoleBinding",
	// optional bundle objects supported by OLM
	"ConfigMap", "ConsoleCLIDownload", "ConsoleLink", "ConsoleQuickStart",
	"ConsoleYamlSample", "PodDisruptionBudget", "PriorityClass", "PrometheusRule",
	"Secret", "Service", "ServiceMonitor", "VerticalPodAutoscaler",
	// add-on framework objects copied verbatim
	"AddOnTemplate", "ClusterManagementAddOn",
	// webhook manifests supplied through webhook_paths
	"MutatingWebhookConfiguration", "ValidatingWebhookConfiguration",
	"CustomResourceDefinition",
}

// Target holds the per-bundle conversion settings.
type Target struct {
	// Name is the chart name.
	Name string `json:"name"`

	// Branch is the target release branch consulted by the version gate.
	Branch string `json:"branch,omitempty"`

	// ImageMappings maps an image repository to its values key.
	ImageMappings map[string]string `json:"imageMappings,omitempty"`

	Exclusions []string `json:"exclusions,omitempty"`
	Inclusions []string `json:"inclusions,omitempty"`

	// SkipRBACOverrides disables RBAC renaming.
	SkipRBACOverrides bool `json:"skipRBACOverrides,omitempty"`

	// RBACNaming selects the RBAC qualifier mode (prefix or chart).
	RBACNaming string `json:"rbacNaming,omitempty"`

	// AutomountServiceAccountToken is applied to every Deployment pod spec
	// when it holds a boolean. Any other value is ignored with a warning.
	AutomountServiceAccountToken any `json:"automountServiceAccountToken,omitempty"`

	SecurityContextConstraints []SecurityOverride `json:"security-context-constraints,omitempty"`

	// EscapeTemplateVariables lists AddOnTemplate variables to protect from
	// Helm rendering.
	EscapeTemplateVariables []string `json:"escape-template-variables,omitempty"`

	// PreserveFiles names chart files that are never overwritten.
	PreserveFiles []string `json:"preserve_files,omitempty"`

	// WebhookPaths are extra manifest files or directories, relative to the
	// bundle, holding webhook configurations.
	WebhookPaths []string `json:"webhook_paths,omitempty"`

	Sizes *Sizes `json:"sizes,omitempty"`

	AllowedKinds *KindAllowList `json:"allowedKinds,omitempty"`

	Gates Gates `json:"gates,omitempty"`
}

// KindAllowList is a versioned list of accepted resource kinds.
type KindAllowList struct {
	Version string   `json:"version"`
	Kinds   []string `json:"kinds"`
}

// Allows reports whether kind is in the list.
func (l *KindAllowList) Allows(kind string) bool {
	return slices.Contains(l.Kinds, kind)
}

// DefaultAllowList returns a fresh copy of the built-in allow-list.
func DefaultAllowList() *KindAllowList {
	return &KindAllowList{Version: AllowListVersion, Kinds: slices.Clone(defaultAllowedKinds)}
}

// Gates holds the release thresholds of every version-dependent behavior.
type Gates struct {
	SecurityContexts    *gate.Threshold `json:"securityContexts,omitempty"`
	NamespaceTemplating *gate.Threshold `json:"namespaceTemplating,omitempty"`
	Replicas            *gate.Threshold `json:"replicas,omitempty"`
	DeployOnOCP         *gate.Threshold `json:"deployOnOCP,omitempty"`
}

// SecurityOverride customises the security context of one workload.
type SecurityOverride struct {
	Kind string `json:"kind"`
	Name string `json:"name"`

	RunAsNonRoot             *bool          `json:"runAsNonRoot,omitempty"`
	RunAsUser                *int64         `json:"runAsUser,omitempty"`
	RunAsGroup               *int64         `json:"runAsGroup,omitempty"`
	FSGroup                  *int64         `json:"fsGroup,omitempty"`
	FSGroupChangePolicy      *string        `json:"fsGroupChangePolicy,omitempty"`
	SELinuxOptions           map[string]any `json:"seLinuxOptions,omitempty"`
	SupplementalGroups       []int64        `json:"supplementalGroups,omitempty"`
	SupplementalGroupsPolicy *string        `json:"supplementalGroupsPolicy,omitempty"`
	SeccompProfile           map[string]any `json:"seccompProfile,omitempty"`

	Containers []ContainerSecurityOverride `json:"containers,omitempty"`
}

// ContainerSecurityOverride customises one container's security context.
type ContainerSecurityOverride struct {
	Name string `json:"name"`

	AllowPrivilegeEscalation *bool          `json:"allowPrivilegeEscalation,omitempty"`
	Capabilities             map[string]any `json:"capabilities,omitempty"`
	Privileged               *bool          `json:"privileged,omitempty"`
	RunAsNonRoot             *bool          `json:"runAsNonRoot,omitempty"`
	ReadOnlyRootFilesystem   *bool          `json:"readOnlyRootFilesystem,omitempty"`
}

// Container returns the override for the named container, or nil.
func (o *SecurityOverride) Container(name string) *ContainerSecurityOverride {
	if o == nil {
		return nil
	}

	for i := range o.Containers {
		if o.Containers[i].Name == name {
			return &o.Containers[i]
		}
	}

	return nil
}

// LoadTarget reads and parses a target file.
func LoadTarget(path string) (*Target, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied path is intentional
	if err != nil {
		return nil, fmt.Errorf("reading target config %q: %w", path, err)
	}

	t, err := ParseTarget(data)
	if err != nil {
		return nil, fmt.Errorf("target config %q: %w", path, err)
	}

	return t, nil
}

// ParseTarget parses and validates target settings from raw YAML.
func ParseTarget(data []byte) (*Target, error) {
	var t Target
	if err := sigsyaml.UnmarshalStrict(data, &t); err != nil {
		return nil, fmt.Errorf("parsing target config: %w", err)
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}

	return &t, nil
}

// valuesKeyPattern matches keys usable in a {{ .Values.x.y }} path.
var valuesKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the target settings for correctness.
func (t *Target) Validate() error {
	for repo, key := range t.ImageMappings {
		if !valuesKeyPattern.MatchString(key) {
			return fmt.Errorf("imageMappings[%s]: value %q is not a valid values key (must match %s)",
				repo, key, valuesKeyPattern.String())
		}
	}

	switch t.RBACNaming {
	case "", RBACNamingPrefix, RBACNamingChart:
	default:
		return fmt.Errorf("invalid rbacNaming %q: must be one of prefix, chart", t.RBACNaming)
	}

	for i, o := range t.SecurityContextConstraints {
		if o.Kind == "" || o.Name == "" {
			return fmt.Errorf("security-context-constraints[%d]: kind and name are required", i)
		}
	}

	if t.AllowedKinds != nil && len(t.AllowedKinds.Kinds) == 0 {
		return fmt.Errorf("allowedKinds %q: kinds must not be empty", t.AllowedKinds.Version)
	}

	if t.Sizes != nil {
		if err := t.Sizes.Validate(); err != nil {
			return err
		}
	}

	return t.Gates.validate()
}

func (g Gates) validate() error {
	for name, th := range map[string]*gate.Threshold{
		"securityContexts":    g.SecurityContexts,
		"namespaceTemplating": g.NamespaceTemplating,
		"replicas":            g.Replicas,
		"deployOnOCP":         g.DeployOnOCP,
	} {
		if th == nil {
			continue
		}

		if err := th.Validate(); err != nil {
			return fmt.Errorf("gates.%s: %w", name, err)
		}
	}

	return nil
}

// Threshold returns the configured threshold or fallback.
func (g Gates) Threshold(configured *gate.Threshold, fallback gate.Threshold) gate.Threshold {
	if configured != nil {
		return *configured
	}

	return fallback
}

// Excludes reports whether feature is listed in exclusions.
func (t *Target) Excludes(feature string) bool {
	return slices.Contains(t.Exclusions, feature)
}

// Includes reports whether feature is listed in inclusions.
func (t *Target) Includes(feature string) bool {
	return slices.Contains(t.Inclusions, feature)
}

// SkipRBAC reports whether RBAC renaming is disabled.
func (t *Target) SkipRBAC() bool {
	return t.SkipRBACOverrides
}

// AllowList returns the configured allow-list or the built-in one.
func (t *Target) AllowList() *KindAllowList {
	if t.AllowedKinds != nil {
		return t.AllowedKinds
	}

	return DefaultAllowList()
}

// AutomountToken returns the configured automount setting. ok is false when
// the setting is absent; valid is false when it is present but not a bool.
func (t *Target) AutomountToken() (value, ok, valid bool) {
	if t.AutomountServiceAccountToken == nil {
		return false, false, true
	}

	b, isBool := t.AutomountServiceAccountToken.(bool)

	return b, true, isBool
}

// SecurityOverrideFor returns the override for the workload, or nil.
func (t *Target) SecurityOverrideFor(kind, name string) *SecurityOverride {
	for i := range t.SecurityContextConstraints {
		o := &t.SecurityContextConstraints[i]
		if o.Kind == kind && o.Name == name {
			return o
		}
	}

	return nil
}
