// Package k8s provides the resource model shared by every chartifier stage.
package k8s

import (
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Resource is one bundle document. Object holds the full tree so unknown
// fields survive every rewrite.
type Resource struct {
	// GVK is the GroupVersionKind of the resource. Kind is empty for
	// documents that do not declare one.
	GVK schema.GroupVersionKind

	// Name is metadata.name at parse time.
	Name string

	// Namespace is metadata.namespace at parse time (may be empty).
	Namespace string

	// SourcePath is the bundle file the document was read from, or a
	// synthetic path such as "csv.yaml#deployments[0]" for expanded objects.
	SourcePath string

	// Object is the full unstructured representation.
	Object *unstructured.Unstructured
}

// NewResource wraps obj, deriving GVK and metadata from its contents.
func NewResource(obj map[string]interface{}, sourcePath string) *Resource {
	u := &unstructured.Unstructured{Object: obj}

	apiVersion, _ := obj["apiVersion"].(string)
	kind, _ := obj["kind"].(string)

	return &Resource{
		GVK:        schema.FromAPIVersionAndKind(apiVersion, kind),
		Name:       u.GetName(),
		Namespace:  u.GetNamespace(),
		SourcePath: sourcePath,
		Object:     u,
	}
}

// APIVersion returns the apiVersion string (e.g. "apps/v1").
func (r *Resource) APIVersion() string {
	if r.Object != nil {
		return r.Object.GetAPIVersion()
	}

	return r.GVK.GroupVersion().String()
}

// Kind returns the resource kind (e.g. "Deployment").
func (r *Resource) Kind() string {
	return r.GVK.Kind
}

// QualifiedName returns "kind/name" for display purposes.
func (r *Resource) QualifiedName() string {
	return r.GVK.Kind + "/" + r.Name
}

// CurrentName returns metadata.name as it is now, after any rewrites.
func (r *Resource) CurrentName() string {
	if r.Object == nil {
		return r.Name
	}

	return r.Object.GetName()
}

// FileName returns the deterministic chart template file name,
// "<name>-<kind>.yaml" in lower case. Templated names are not usable as
// file names, so the parse-time name is used.
func (r *Resource) FileName() string {
	name := r.Name
	if name == "" {
		name = "unnamed"
	}

	return strings.ToLower(sanitize(name) + "-" + r.GVK.Kind + ".yaml")
}

// DeepCopy returns an independent copy of r.
func (r *Resource) DeepCopy() *Resource {
	c := *r
	if r.Object != nil {
		c.Object = r.Object.DeepCopy()
	}

	return &c
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', ':', ' ', '\\':
			return '-'
		default:
			return r
		}
	}, s)
}
