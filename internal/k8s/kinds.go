package k8s

// Well-known kinds referenced by the chartifier stages.
const (
	KindDeployment              = "Deployment"
	KindStatefulSet             = "StatefulSet"
	KindDaemonSet               = "DaemonSet"
	KindReplicaSet              = "ReplicaSet"
	KindJob                     = "Job"
	KindCronJob                 = "CronJob"
	KindServiceAccount          = "ServiceAccount"
	KindRole                    = "Role"
	KindClusterRole             = "ClusterRole"
	KindRoleBinding             = "RoleBinding"
	KindClusterRoleBinding      = "ClusterRoleBinding"
	KindCRD                     = "CustomResourceDefinition"
	KindCertificate             = "Certificate"
	KindAddOnTemplate           = "AddOnTemplate"
	KindClusterManagementAddOn  = "ClusterManagementAddOn"
	KindMutatingWebhookConfig   = "MutatingWebhookConfiguration"
	KindValidatingWebhookConfig = "ValidatingWebhookConfiguration"
	KindClusterServiceVersion   = "ClusterServiceVersion"
)

// namespacedKinds are the kinds whose metadata.namespace is templated.
var namespacedKinds = map[string]bool{
	"ServiceAccount":           true,
	"Role":                     true,
	"RoleBinding":              true,
	"Service":                  true,
	"Deployment":               true,
	"StatefulSet":              true,
	"ConfigMap":                true,
	"Secret":                   true,
	"Ingress":                  true,
	"PersistentVolumeClaim":    true,
	"Pod":                      true,
	"ReplicaSet":               true,
	"DaemonSet":                true,
	"Job":                      true,
	"CronJob":                  true,
	"HorizontalPodAutoscaler":  true,
	"NetworkPolicy":            true,
	"PodDisruptionBudget":      true,
	"Lease":                    true,
	"EndpointSlice":            true,
	"Endpoints":                true,
	"Route":                    true,
	"Placement":                true,
	"ManagedClusterSetBinding": true,
	"AddOnDeploymentConfig":    true,
	"Certificate":              true,
	"Issuer":                   true,
	"ServiceMonitor":           true,
	"PrometheusRule":           true,
}

// IsNamespaced returns true if kind lives in a namespace.
func IsNamespaced(kind string) bool {
	return namespacedKinds[kind]
}

// WorkloadKinds defines the Kubernetes kinds that contain pod templates.
var WorkloadKinds = map[string]bool{
	KindDeployment:  true,
	KindStatefulSet: true,
	KindDaemonSet:   true,
	KindJob:         true,
	KindCronJob:     true,
	KindReplicaSet:  true,
}

// IsWorkloadKind returns true if the kind represents a pod-bearing workload.
func IsWorkloadKind(kind string) bool {
	return WorkloadKinds[kind]
}

// IsRoleKind returns true for Role and ClusterRole.
func IsRoleKind(kind string) bool {
	return kind == KindRole || kind == KindClusterRole
}

// IsBindingKind returns true for RoleBinding and ClusterRoleBinding.
func IsBindingKind(kind string) bool {
	return kind == KindRoleBinding || kind == KindClusterRoleBinding
}

// IsWebhookConfigKind returns true for admission webhook configurations.
func IsWebhookConfigKind(kind string) bool {
	return kind == KindMutatingWebhookConfig || kind == KindValidatingWebhookConfig
}
