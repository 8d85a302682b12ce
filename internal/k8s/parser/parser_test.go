package parser_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s/parser"
)

func TestParser_MultiDocument(t *testing.T) {
	manifest := []byte(`apiVersion: v1
kind: Service
metadata:
  name: webhook
  namespace: open-cluster-management
spec:
  ports:
  - port: 443
---
# comment only
---
apiVersion: monitoring.coreos.com/v1
kind: ServiceMonitor
metadata:
  name: metrics
`)

	resources, err := parser.NewParser().Parse(context.Background(), "manifests/extra.yaml", manifest)
	require.NoError(t, err)
	require.Len(t, resources, 2)

	assert.Equal(t, "Service", resources[0].Kind())
	assert.Equal(t, "webhook", resources[0].Name)
	assert.Equal(t, "open-cluster-management", resources[0].Namespace)
	assert.Equal(t, "manifests/extra.yaml", resources[0].SourcePath)

	assert.Equal(t, "monitoring.coreos.com", resources[1].GVK.Group)
	assert.Equal(t, "ServiceMonitor", resources[1].Kind())
}

func TestParser_KeepsDocumentsWithoutKind(t *testing.T) {
	resources, err := parser.NewParser().Parse(context.Background(), "notes.yaml", []byte("description: not a resource\n"))
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Empty(t, resources[0].Kind())
}

func TestParser_InvalidYAML(t *testing.T) {
	_, err := parser.NewParser().Parse(context.Background(), "broken.yaml", []byte("kind: [unclosed\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestParser_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := parser.NewParser().Parse(ctx, "x.yaml", []byte("kind: Service\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParser_EmptyInput(t *testing.T) {
	resources, err := parser.NewParser().Parse(context.Background(), "empty.yaml", nil)
	require.NoError(t, err)
	assert.Empty(t, resources)
}

func TestParser_IntegersStayIntegers(t *testing.T) {
	resources, err := parser.NewParser().Parse(context.Background(), "d.yaml",
		[]byte("kind: Deployment\nspec:\n  replicas: 1\n  runAsUser: 1000680000\n  ratio: 0.5\n"))
	require.NoError(t, err)

	spec := resources[0].Object.Object["spec"].(map[string]interface{})
	assert.Equal(t, int64(1000680000), spec["runAsUser"])
	assert.Equal(t, int64(1), spec["replicas"])
	assert.InDelta(t, 0.5, spec["ratio"], 0.0001)
}
