package bundle_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolostron/installer-dev-tools-sub000/internal/bundle"
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s/parser"
)

func kindsOf(resources []*k8s.Resource) []string {
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		out = append(out, r.Kind())
	}

	return out
}

func TestLoad_ExpandsInstallStrategy(t *testing.T) {
	b, err := bundle.Load(context.Background(), "testdata/basic", bundle.Options{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("testdata/basic", "manifests"), b.Dir)
	assert.Equal(t, "example-operator.v2.9.0", b.CSV.Name)
	assert.Equal(t, "Example operator for multicluster workloads", b.Description())
	assert.Equal(t, "2.9.0", b.Version())

	assert.Equal(t, []string{
		"Deployment",
		"ClusterRole", "ServiceAccount", "ClusterRoleBinding",
		"Role", "RoleBinding",
		"Service",
	}, kindsOf(b.Resources))
}

func TestLoad_DeploymentDropsPodPullPolicy(t *testing.T) {
	b, err := bundle.Load(context.Background(), "testdata/basic", bundle.Options{})
	require.NoError(t, err)

	dep := b.Resources[0]
	assert.Equal(t, "example-operator", dep.Name)
	assert.Equal(t, "apps/v1", dep.APIVersion())
	assert.Equal(t, map[string]string{"app": "example-operator"}, dep.Object.GetLabels())

	podSpec := dep.Object.Object["spec"].(map[string]interface{})["template"].(map[string]interface{})["spec"].(map[string]interface{})
	assert.NotContains(t, podSpec, "imagePullPolicy")
	assert.Equal(t, "example-operator", podSpec["serviceAccountName"])
	assert.Contains(t, dep.SourcePath, "#deployments[0]")
}

func TestLoad_ExtraPaths(t *testing.T) {
	b, err := bundle.Load(context.Background(), "testdata/basic", bundle.Options{ExtraPaths: []string{"webhooks"}})
	require.NoError(t, err)

	last := b.Resources[len(b.Resources)-1]
	assert.Equal(t, "ValidatingWebhookConfiguration", last.Kind())
	assert.Equal(t, filepath.Join("testdata/basic", "webhooks", "validating.yaml"), last.SourcePath)
}

func TestLoad_MissingExtraPath(t *testing.T) {
	_, err := bundle.Load(context.Background(), "testdata/basic", bundle.Options{ExtraPaths: []string{"nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestLoad_NoCSV(t *testing.T) {
	_, err := bundle.Load(context.Background(), "testdata/nocsv", bundle.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, bundle.ErrNoCSV)
}

func TestLoad_MultipleCSVs(t *testing.T) {
	dir := t.TempDir()
	csv := []byte("apiVersion: operators.coreos.com/v1alpha1\nkind: ClusterServiceVersion\nmetadata:\n  name: a\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), csv, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), csv, 0o600))

	_, err := bundle.Load(context.Background(), dir, bundle.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple ClusterServiceVersions")
}

func TestLoad_UnsupportedSections(t *testing.T) {
	_, err := bundle.Load(context.Background(), "testdata/unsupported", bundle.Options{})
	require.Error(t, err)

	var sectionErr *bundle.UnsupportedSectionError
	require.True(t, errors.As(err, &sectionErr))
	assert.Equal(t, []string{"apiServiceDefinitions", "webhookDefinitions"}, sectionErr.Sections)
	assert.Contains(t, err.Error(), "apiServiceDefinitions, webhookDefinitions")
}

func TestExpandCSV_SharedServiceAccount(t *testing.T) {
	src := []byte(`apiVersion: operators.coreos.com/v1alpha1
kind: ClusterServiceVersion
metadata:
  name: shared
spec:
  install:
    spec:
      clusterPermissions:
      - serviceAccountName: operator
        rules: []
      permissions:
      - serviceAccountName: operator
        rules: []
      - serviceAccountName: helper
`)

	docs, err := parser.NewParser().Parse(context.Background(), "csv.yaml", src)
	require.NoError(t, err)

	out, err := bundle.ExpandCSV(docs[0])
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ClusterRole", "ServiceAccount", "ClusterRoleBinding",
		"Role", "RoleBinding",
		"Role", "ServiceAccount", "RoleBinding",
	}, kindsOf(out))

	binding := out[2].Object.Object
	assert.Equal(t, map[string]interface{}{
		"apiGroup": "rbac.authorization.k8s.io",
		"kind":     "ClusterRole",
		"name":     "operator",
	}, binding["roleRef"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{"kind": "ServiceAccount", "name": "operator"},
	}, binding["subjects"])

	assert.Equal(t, []interface{}{}, out[5].Object.Object["rules"])
}

func TestExpandCSV_NoInstallStrategy(t *testing.T) {
	csv := k8s.NewResource(map[string]interface{}{
		"kind":     "ClusterServiceVersion",
		"metadata": map[string]interface{}{"name": "empty"},
	}, "csv.yaml")

	out, err := bundle.ExpandCSV(csv)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestIsManifestFile(t *testing.T) {
	assert.True(t, bundle.IsManifestFile("a.yaml"))
	assert.True(t, bundle.IsManifestFile("b.YML"))
	assert.False(t, bundle.IsManifestFile("README.md"))
}
