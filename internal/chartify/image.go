package chartify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
)

const (
	imageReason = "image override"

	// placeholderImageKey is the dummy override shipped in the values
	// skeleton.
	placeholderImageKey = "imageOverride"

	// ManagementAnnotation pins add-on agent pods to management cores.
	ManagementAnnotation      = "target.workload.openshift.io/management"
	managementAnnotationValue = `{"effect": "PreferredDuringScheduling"}`
)

// ImageOverrideExpr returns the values expression for an image key.
func ImageOverrideExpr(key string) string {
	return "{{ .Values.global.imageOverrides." + key + " }}"
}

// ValuesManifest is the ordered set of image override keys the chart
// references.
type ValuesManifest struct {
	keys []string
	seen map[string]bool
}

// NewValuesManifest returns an empty manifest.
func NewValuesManifest() *ValuesManifest {
	return &ValuesManifest{seen: map[string]bool{}}
}

// Add records key once. The skeleton placeholder key is ignored.
func (v *ValuesManifest) Add(key string) {
	if key == placeholderImageKey || v.seen[key] {
		return
	}

	v.seen[key] = true
	v.keys = append(v.keys, key)
}

// Keys returns the keys in first-registration order.
func (v *ValuesManifest) Keys() []string {
	out := make([]string, len(v.keys))
	copy(out, v.keys)

	return out
}

// Len returns the number of keys.
func (v *ValuesManifest) Len() int {
	return len(v.keys)
}

// UnmappedImage is one image whose repository has no values key.
type UnmappedImage struct {
	ResourceID string
	FieldPath  string
	Image      string
	Repository string
}

// UnmappedImageError lists every image without a mapping.
type UnmappedImageError struct {
	Images []UnmappedImage
}

// Repositories returns the distinct unmapped repositories, sorted.
func (e *UnmappedImageError) Repositories() []string {
	seen := map[string]bool{}

	var out []string

	for _, img := range e.Images {
		if !seen[img.Repository] {
			seen[img.Repository] = true
			out = append(out, img.Repository)
		}
	}

	sort.Strings(out)

	return out
}

func (e *UnmappedImageError) Error() string {
	parts := make([]string, 0, len(e.Images))
	for _, img := range e.Images {
		parts = append(parts, fmt.Sprintf("%s (%s %s)", img.Repository, img.ResourceID, img.FieldPath))
	}

	return "no image key mapping for: " + strings.Join(parts, ", ")
}

// ImageStage parameterizes container images through global.imageOverrides.
type ImageStage struct {
	mappings  map[string]string
	envSuffix string
}

// NewImageStage creates the image templater. mappings maps an image
// repository to its values key.
func NewImageStage(mappings map[string]string, envSuffix string) *ImageStage {
	if envSuffix == "" {
		envSuffix = DefaultEnvSuffix
	}

	return &ImageStage{mappings: mappings, envSuffix: envSuffix}
}

// Name returns the stage name.
func (s *ImageStage) Name() string {
	return "image"
}

// imagePass carries the state of one Apply call.
type imagePass struct {
	*ImageStage
	result   *Result
	unmapped []UnmappedImage
}

// Apply rewrites every workload and AddOnTemplate in the table. Unmapped
// repositories are collected across the whole table and reported together.
func (s *ImageStage) Apply(ctx context.Context, table *k8s.Table, result *Result) error {
	if result.Values == nil {
		result.Values = NewValuesManifest()
	}

	p := &imagePass{ImageStage: s, result: result}

	for _, res := range table.All() {
		kind := res.Kind()
		resID := res.QualifiedName()

		switch {
		case k8s.IsWorkloadKind(kind):
			p.podSpec(k8s.PodSpec(kind, res.Object.Object), resID, podSpecPath(kind), true)
		case kind == k8s.KindAddOnTemplate:
			p.addOnTemplate(res.Object.Object, resID)
		}
	}

	if len(p.unmapped) > 0 {
		return &UnmappedImageError{Images: p.unmapped}
	}

	logging.FromContext(ctx).Debug("image overrides registered", slog.Any("keys", result.Values.Keys()))

	return nil
}

func podSpecPath(kind string) string {
	if kind == k8s.KindCronJob {
		return "spec.jobTemplate.spec.template.spec"
	}

	return "spec.template.spec"
}

// addOnTemplate rewrites the Deployments embedded in an add-on template.
// The agent pull policy is left to the add-on framework.
func (p *imagePass) addOnTemplate(obj map[string]interface{}, resID string) {
	for i, m := range k8s.NestedManifests(obj) {
		if k8s.KindOf(m) != k8s.KindDeployment {
			continue
		}

		base := fmt.Sprintf("spec.agentSpec.workload.manifests[%d].", i)
		p.podSpec(k8s.PodSpec(k8s.KindDeployment, m), resID, base+"spec.template.spec", false)

		template := k8s.PodTemplate(k8s.KindDeployment, m)
		if template == nil {
			continue
		}

		annotations := k8s.GetOrCreateMap(k8s.GetOrCreateMap(template, "metadata"), "annotations")
		if _, ok := annotations[ManagementAnnotation]; !ok {
			annotations[ManagementAnnotation] = managementAnnotationValue
			p.result.change(resID, base+"spec.template.metadata.annotations."+ManagementAnnotation, nil, managementAnnotationValue, "add-on workload partitioning")
		}
	}
}

func (p *imagePass) podSpec(podSpec map[string]interface{}, resID, base string, setPullPolicy bool) {
	if podSpec == nil {
		return
	}

	for _, key := range k8s.ContainerKeys {
		for i, c := range k8s.Containers(podSpec, key) {
			p.container(c, resID, fmt.Sprintf("%s.%s[%d]", base, key, i), setPullPolicy)
		}
	}
}

func (p *imagePass) container(c map[string]interface{}, resID, path string, setPullPolicy bool) {
	if image, ok := c["image"].(string); ok && !k8s.IsTemplated(image) {
		if expr, ok := p.template(image, resID, path+".image"); ok {
			c["image"] = expr
			p.result.change(resID, path+".image", image, expr, imageReason)

			replaceInStrings(c, "command", image, expr)
			replaceInStrings(c, "args", image, expr)
		}
	}

	if setPullPolicy {
		if old, _ := c["imagePullPolicy"].(string); old != pullPolicyExpr {
			c["imagePullPolicy"] = pullPolicyExpr

			var oldValue interface{}
			if old != "" {
				oldValue = old
			}

			p.result.change(resID, path+".imagePullPolicy", oldValue, pullPolicyExpr, imageReason)
		}
	}

	env, _ := c["env"].([]interface{})
	for i, item := range env {
		e, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		name, _ := e["name"].(string)
		if !strings.HasSuffix(name, p.envSuffix) {
			continue
		}

		value, ok := e["value"].(string)
		if !ok || value == "" || k8s.IsTemplated(value) {
			continue
		}

		envPath := fmt.Sprintf("%s.env[%d].value", path, i)
		if expr, ok := p.template(value, resID, envPath); ok {
			e["value"] = expr
			p.result.change(resID, envPath, value, expr, imageReason)
		}
	}
}

// template maps image to its override expression, recording a miss.
func (p *imagePass) template(image, resID, fieldPath string) (string, bool) {
	repo := k8s.ParseImageRef(image).Repository

	key, ok := p.mappings[repo]
	if !ok {
		p.unmapped = append(p.unmapped, UnmappedImage{
			ResourceID: resID,
			FieldPath:  fieldPath,
			Image:      image,
			Repository: repo,
		})

		return "", false
	}

	p.result.Values.Add(key)

	return ImageOverrideExpr(key), true
}

// replaceInStrings substitutes old with next in every string of c[key].
func replaceInStrings(c map[string]interface{}, key, old, next string) {
	list, _ := c[key].([]interface{})

	for i, item := range list {
		if s, ok := item.(string); ok && strings.Contains(s, old) {
			list[i] = strings.ReplaceAll(s, old, next)
		}
	}
}
