package chartify

import (
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
)

// makeResource wraps obj as a resource read from test.yaml.
func makeResource(obj map[string]interface{}) *k8s.Resource {
	return k8s.NewResource(obj, "test.yaml")
}

// makeDeployment creates a minimal Deployment resource for testing.
func makeDeployment(name string, containers ...interface{}) *k8s.Resource {
	return makeWorkload(k8s.KindDeployment, name, containers...)
}

// makeWorkload creates a workload with the given containers.
func makeWorkload(kind, name string, containers ...interface{}) *k8s.Resource {
	return makeResource(map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       kind,
		"metadata":   map[string]interface{}{"name": name},
		"spec": map[string]interface{}{
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{
					"labels": map[string]interface{}{"app": name},
				},
				"spec": map[string]interface{}{
					"containers": containers,
				},
			},
		},
	})
}

// makeContainer creates a container map for testing.
func makeContainer(name, image string) map[string]interface{} {
	return map[string]interface{}{
		"name":  name,
		"image": image,
	}
}

// tableOf builds a table from resources.
func tableOf(resources ...*k8s.Resource) *k8s.Table {
	t := k8s.NewTable()
	for _, r := range resources {
		t.Add(r)
	}

	return t
}

// podSpecOf returns the pod spec of a Deployment-shaped resource.
func podSpecOf(r *k8s.Resource) map[string]interface{} {
	return k8s.PodSpec(r.Kind(), r.Object.Object)
}

// containerAt returns the i-th container of r.
func containerAt(r *k8s.Resource, i int) map[string]interface{} {
	return k8s.Containers(podSpecOf(r), "containers")[i]
}

// namespaceOf returns metadata.namespace of r.
func namespaceOf(r *k8s.Resource) string {
	return r.Object.GetNamespace()
}
