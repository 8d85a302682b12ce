package flowctl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeVariables(t *testing.T) {
	text := "args:\n  - --cluster={{CLUSTER_NAME}}\n  - --hub={{HUB_KUBECONFIG}}\n  - --other={{OTHER}}\n"

	got := EscapeVariables(text, []string{"CLUSTER_NAME", "HUB_KUBECONFIG"})

	assert.Contains(t, got, "--cluster={{ `{{CLUSTER_NAME}}` }}")
	assert.Contains(t, got, "--hub={{ `{{HUB_KUBECONFIG}}` }}")
	assert.Contains(t, got, "--other={{OTHER}}", "unlisted variables are untouched")
}

func TestEscapeVariables_Idempotent(t *testing.T) {
	vars := []string{"CLUSTER_NAME"}
	once := EscapeVariables("name: {{CLUSTER_NAME}}-agent\n", vars)

	assert.Equal(t, once, EscapeVariables(once, vars))
	assert.Equal(t, "name: {{ `{{CLUSTER_NAME}}` }}-agent\n", once)
}

func TestEscapeVariables_NoVariables(t *testing.T) {
	text := "value: {{CLUSTER_NAME}}\n"
	assert.Equal(t, text, EscapeVariables(text, nil))
}
