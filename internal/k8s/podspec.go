package k8s

// PodTemplate returns the pod template of a workload object, or nil.
// CronJobs carry it under spec.jobTemplate.spec.template.
func PodTemplate(kind string, obj map[string]interface{}) map[string]interface{} {
	spec, ok := obj["spec"].(map[string]interface{})
	if !ok {
		return nil
	}

	if kind == KindCronJob {
		jobTemplate, ok := spec["jobTemplate"].(map[string]interface{})
		if !ok {
			return nil
		}

		spec, ok = jobTemplate["spec"].(map[string]interface{})
		if !ok {
			return nil
		}
	}

	template, _ := spec["template"].(map[string]interface{})

	return template
}

// PodSpec returns the pod spec of a workload object, or nil.
func PodSpec(kind string, obj map[string]interface{}) map[string]interface{} {
	template := PodTemplate(kind, obj)
	if template == nil {
		return nil
	}

	podSpec, _ := template["spec"].(map[string]interface{})

	return podSpec
}

// ContainerKeys lists the pod spec fields holding containers.
var ContainerKeys = []string{"initContainers", "containers"}

// Containers returns the container maps of podSpec under key. The maps are
// shared with podSpec, so changes to them are visible in the object.
func Containers(podSpec map[string]interface{}, key string) []map[string]interface{} {
	list, ok := podSpec[key].([]interface{})
	if !ok {
		return nil
	}

	out := make([]map[string]interface{}, 0, len(list))

	for _, item := range list {
		if c, ok := item.(map[string]interface{}); ok {
			out = append(out, c)
		}
	}

	return out
}

// GetOrCreateMap returns parent[key] as a map, creating it when missing or
// of another type.
func GetOrCreateMap(parent map[string]interface{}, key string) map[string]interface{} {
	if v, ok := parent[key].(map[string]interface{}); ok {
		return v
	}

	m := map[string]interface{}{}
	parent[key] = m

	return m
}

// NestedManifests returns the objects embedded in an AddOnTemplate under
// spec.agentSpec.workload.manifests.
func NestedManifests(obj map[string]interface{}) []map[string]interface{} {
	spec, _ := obj["spec"].(map[string]interface{})
	agentSpec, _ := spec["agentSpec"].(map[string]interface{})
	workload, _ := agentSpec["workload"].(map[string]interface{})

	list, _ := workload["manifests"].([]interface{})

	out := make([]map[string]interface{}, 0, len(list))

	for _, item := range list {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}

	return out
}

// KindOf returns the kind field of a raw object.
func KindOf(obj map[string]interface{}) string {
	kind, _ := obj["kind"].(string)
	return kind
}
