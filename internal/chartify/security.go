package chartify

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
	"github.com/stolostron/installer-dev-tools-sub000/internal/maputil"
)

const (
	securityReason = "security context"
	runtimeDefault = "RuntimeDefault"
)

// securityKinds are the workloads whose security contexts are normalized.
var securityKinds = map[string]bool{
	k8s.KindDeployment:  true,
	k8s.KindJob:         true,
	k8s.KindStatefulSet: true,
}

// SecurityStage applies restricted pod and container security contexts,
// with per-workload overrides.
type SecurityStage struct {
	overrides      []config.SecurityOverride
	readOnlyRootFS bool
}

// NewSecurityStage creates the security normalizer. readOnlyRootFS controls
// the container readOnlyRootFilesystem default.
func NewSecurityStage(overrides []config.SecurityOverride, readOnlyRootFS bool) *SecurityStage {
	return &SecurityStage{overrides: overrides, readOnlyRootFS: readOnlyRootFS}
}

// Name returns the stage name.
func (s *SecurityStage) Name() string {
	return "security"
}

// Apply normalizes every Deployment, Job and StatefulSet.
func (s *SecurityStage) Apply(ctx context.Context, table *k8s.Table, result *Result) error {
	logger := logging.FromContext(ctx)

	for _, res := range table.All() {
		kind := res.Kind()
		if !securityKinds[kind] {
			continue
		}

		override := s.overrideFor(kind, res.Name)
		logger.Debug("normalizing security context",
			slog.String("resource", res.QualifiedName()),
			slog.Bool("override", override != nil),
		)

		s.normalize(res, override, result)
	}

	return nil
}

func (s *SecurityStage) overrideFor(kind, name string) *config.SecurityOverride {
	for i := range s.overrides {
		if s.overrides[i].Kind == kind && s.overrides[i].Name == name {
			return &s.overrides[i]
		}
	}

	return nil
}

func (s *SecurityStage) normalize(res *k8s.Resource, o *config.SecurityOverride, result *Result) {
	resID := res.QualifiedName()

	spec := k8s.GetOrCreateMap(res.Object.Object, "spec")
	podSpec := k8s.GetOrCreateMap(k8s.GetOrCreateMap(spec, "template"), "spec")
	podSC := k8s.GetOrCreateMap(podSpec, "securityContext")

	const podPath = "spec.template.spec.securityContext"

	if o == nil {
		o = &config.SecurityOverride{}
	}

	runAsNonRoot := true
	if o.RunAsNonRoot != nil {
		runAsNonRoot = *o.RunAsNonRoot
	}

	set(podSC, "runAsNonRoot", runAsNonRoot, resID, podPath+".runAsNonRoot", securityReason, result)

	// Identity settings only come from overrides; bundle values are dropped
	// so the platform can assign them.
	setOrRemove(podSC, "runAsUser", int64Value(o.RunAsUser), resID, podPath, result)
	setOrRemove(podSC, "runAsGroup", int64Value(o.RunAsGroup), resID, podPath, result)
	setOrRemove(podSC, "fsGroup", int64Value(o.FSGroup), resID, podPath, result)
	setOrRemove(podSC, "fsGroupChangePolicy", stringValue(o.FSGroupChangePolicy), resID, podPath, result)
	setOrRemove(podSC, "seLinuxOptions", mapValue(o.SELinuxOptions), resID, podPath, result)
	setOrRemove(podSC, "supplementalGroups", int64Slice(o.SupplementalGroups), resID, podPath, result)
	setOrRemove(podSC, "supplementalGroupsPolicy", stringValue(o.SupplementalGroupsPolicy), resID, podPath, result)

	if _, ok := podSC["seccompProfile"]; !ok {
		profile := map[string]interface{}{"type": runtimeDefault}
		if o.SeccompProfile != nil {
			profile = maputil.DeepCopyMap(o.SeccompProfile)
		}

		podSC["seccompProfile"] = profile
		result.change(resID, podPath+".seccompProfile", nil, profile, securityReason)
	}

	if !isRuntimeDefault(podSC["seccompProfile"]) {
		result.warn("%s: leaving non-standard pod seccompProfile %v", resID, podSC["seccompProfile"])
	}

	for i, c := range k8s.Containers(podSpec, "containers") {
		name, _ := c["name"].(string)
		s.container(c, o.Container(name), resID, fmt.Sprintf("spec.template.spec.containers[%d]", i), result)
	}
}

func (s *SecurityStage) container(c map[string]interface{}, o *config.ContainerSecurityOverride, resID, path string, result *Result) {
	if _, ok := c["env"]; !ok {
		c["env"] = map[string]interface{}{}
		result.change(resID, path+".env", nil, "{}", "flow-control anchor")
	}

	if o == nil {
		o = &config.ContainerSecurityOverride{}
	}

	sc := k8s.GetOrCreateMap(c, "securityContext")
	scPath := path + ".securityContext"

	set(sc, "allowPrivilegeEscalation", boolOr(o.AllowPrivilegeEscalation, false), resID, scPath+".allowPrivilegeEscalation", securityReason, result)

	capabilities := map[string]interface{}{"drop": []interface{}{"ALL"}}
	if o.Capabilities != nil {
		capabilities = maputil.DeepCopyMap(o.Capabilities)
	}

	set(sc, "capabilities", capabilities, resID, scPath+".capabilities", securityReason, result)
	set(sc, "privileged", boolOr(o.Privileged, false), resID, scPath+".privileged", securityReason, result)
	set(sc, "runAsNonRoot", boolOr(o.RunAsNonRoot, true), resID, scPath+".runAsNonRoot", securityReason, result)

	if o.ReadOnlyRootFilesystem != nil || s.readOnlyRootFS {
		set(sc, "readOnlyRootFilesystem", boolOr(o.ReadOnlyRootFilesystem, true), resID, scPath+".readOnlyRootFilesystem", securityReason, result)
	}

	profile, ok := sc["seccompProfile"]
	if !ok {
		return
	}

	if isRuntimeDefault(profile) {
		// The pod-level profile applies instead.
		delete(sc, "seccompProfile")
		result.change(resID, scPath+".seccompProfile", profile, "<removed>", securityReason)

		return
	}

	result.warn("%s: leaving non-standard container seccompProfile %v at %s", resID, profile, scPath)
}

// set assigns value to m[key], recording a change when it differs.
func set(m map[string]interface{}, key string, value interface{}, resID, fieldPath, reason string, result *Result) {
	old, exists := m[key]
	if exists && reflect.DeepEqual(old, value) {
		return
	}

	m[key] = value
	result.change(resID, fieldPath, old, value, reason)
}

// setOrRemove assigns value, or deletes the key when value is nil.
func setOrRemove(m map[string]interface{}, key string, value interface{}, resID, basePath string, result *Result) {
	if value != nil {
		set(m, key, value, resID, basePath+"."+key, securityReason, result)
		return
	}

	if old, ok := m[key]; ok {
		delete(m, key)
		result.change(resID, basePath+"."+key, old, "<removed>", securityReason)
	}
}

func isRuntimeDefault(profile interface{}) bool {
	m, ok := profile.(map[string]interface{})
	if !ok {
		return false
	}

	t, _ := m["type"].(string)

	return t == runtimeDefault
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}

	return *p
}

// The helpers below return untyped nil for absent settings so setOrRemove
// can tell them apart.

func int64Value(p *int64) interface{} {
	if p == nil {
		return nil
	}

	return *p
}

func stringValue(p *string) interface{} {
	if p == nil {
		return nil
	}

	return *p
}

func mapValue(m map[string]interface{}) interface{} {
	if m == nil {
		return nil
	}

	return maputil.DeepCopyMap(m)
}

func int64Slice(s []int64) interface{} {
	if s == nil {
		return nil
	}

	out := make([]interface{}, len(s))
	for i, v := range s {
		out[i] = v
	}

	return out
}
