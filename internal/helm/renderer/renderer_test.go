package renderer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"helm.sh/helm/v3/pkg/chart"
)

const sizedDeployment = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: controller
  namespace: '{{ .Values.global.namespace }}'
spec:
  replicas: {{ .Values.hubconfig.replicaCount }}
  template:
    spec:
      containers:
        - image: '{{ .Values.global.imageOverrides.controller }}'
          name: manager
          resources:
{{- if eq .Values.hubconfig.hubSize "Small" }}
            limits:
              memory: 128Mi
{{- end }}
{{- if eq .Values.hubconfig.hubSize "Large" }}
            limits:
              memory: 1Gi
{{- end }}
{{- with .Values.hubconfig.nodeSelector }}
      nodeSelector:
{{ toYaml . | indent 8 }}
{{- end }}
`

func newTestChart() *chart.Chart {
	return &chart.Chart{
		Metadata: &chart.Metadata{
			Name:       "widget-operator",
			Version:    "0.1.0",
			APIVersion: "v2",
			Type:       "application",
		},
		Values: map[string]interface{}{
			"global": map[string]interface{}{
				"namespace":      "open-cluster-management",
				"imageOverrides": map[string]interface{}{"controller": "quay.io/acme/controller:v1"},
			},
			"hubconfig": map[string]interface{}{
				"hubSize":      "Small",
				"replicaCount": 1,
			},
		},
		Templates: []*chart.File{
			{Name: "templates/controller-deployment.yaml", Data: []byte(sizedDeployment)},
			{Name: "templates/NOTES.txt", Data: []byte("installed")},
		},
	}
}

func TestHelmRenderer_Render(t *testing.T) {
	ch := newTestChart()

	out, err := New(DefaultRenderOptions()).Render(context.Background(), ch, ch.Values)
	require.NoError(t, err)

	yaml := string(out)
	assert.Contains(t, yaml, "namespace: 'open-cluster-management'")
	assert.Contains(t, yaml, "image: 'quay.io/acme/controller:v1'")
	assert.Contains(t, yaml, "memory: 128Mi")
	assert.NotContains(t, yaml, "memory: 1Gi")
	assert.NotContains(t, yaml, "nodeSelector")
	assert.NotContains(t, yaml, "installed")
}

func TestHelmRenderer_Render_WithOverrides(t *testing.T) {
	ch := newTestChart()

	vals, err := MergeValues(ch, ValuesOptions{Values: []string{
		"hubconfig.hubSize=Large",
		"hubconfig.replicaCount=3",
		"hubconfig.nodeSelector.role=infra",
	}})
	require.NoError(t, err)

	out, err := New(DefaultRenderOptions()).Render(context.Background(), ch, vals)
	require.NoError(t, err)

	yaml := string(out)
	assert.Contains(t, yaml, "replicas: 3")
	assert.Contains(t, yaml, "memory: 1Gi")
	assert.Contains(t, yaml, "      nodeSelector:\n        role: infra")
}

func TestHelmRenderer_Render_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := newTestChart()
	_, err := New(DefaultRenderOptions()).Render(ctx, ch, ch.Values)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestHelmRenderer_Render_StrictMode(t *testing.T) {
	ch := newTestChart()
	ch.Templates = []*chart.File{{Name: "templates/test.yaml", Data: []byte("value: {{ .Values.missing.key }}")}}

	_, err := New(RenderOptions{Strict: true}).Render(context.Background(), ch, ch.Values)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rendering templates")
}

func TestHelmRenderer_Verify(t *testing.T) {
	ch := newTestChart()

	n, err := New(DefaultRenderOptions()).Verify(context.Background(), ch, ch.Values)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHelmRenderer_Verify_InvalidYAML(t *testing.T) {
	ch := newTestChart()
	ch.Templates = append(ch.Templates, &chart.File{
		Name: "templates/broken.yaml",
		Data: []byte("kind: ConfigMap\nmetadata:\n  name: broken\n   labels: {}\n"),
	})

	_, err := New(DefaultRenderOptions()).Verify(context.Background(), ch, ch.Values)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid YAML")
}

func TestNew_FillsDefaults(t *testing.T) {
	r := New(RenderOptions{})
	assert.Equal(t, "release", r.opts.ReleaseName)
	assert.Equal(t, "default", r.opts.Namespace)
}

func TestCombineManifests_DeterministicOrder(t *testing.T) {
	out := string(combineManifests(map[string]string{
		"chart/templates/b.yaml": "kind: B",
		"chart/templates/a.yaml": "kind: A",
		"chart/templates/c.yaml": "  \n",
	}))

	assert.Equal(t, "kind: A\n---\nkind: B\n", out)
	assert.Less(t, strings.Index(out, "kind: A"), strings.Index(out, "kind: B"))
}

func TestMergeValues_LayerOrder(t *testing.T) {
	ch := newTestChart()
	vf := filepath.Join(t.TempDir(), "large.yaml")
	require.NoError(t, os.WriteFile(vf, []byte("hubconfig:\n  hubSize: Large\n  replicaCount: 2\n"), 0o600))

	vals, err := MergeValues(ch, ValuesOptions{
		ValueFiles:   []string{vf},
		Values:       []string{"hubconfig.replicaCount=5"},
		StringValues: []string{"hubconfig.ocpVersion=4.14.0"},
	})
	require.NoError(t, err)

	hub := vals["hubconfig"].(map[string]interface{})
	assert.Equal(t, "Large", hub["hubSize"])
	assert.Equal(t, int64(5), hub["replicaCount"])
	assert.Equal(t, "4.14.0", hub["ocpVersion"])
}

func TestMergeValues_DoesNotMutateChartValues(t *testing.T) {
	ch := newTestChart()

	_, err := MergeValues(ch, ValuesOptions{Values: []string{"hubconfig.hubSize=ExtraLarge"}})
	require.NoError(t, err)

	hub := ch.Values["hubconfig"].(map[string]interface{})
	assert.Equal(t, "Small", hub["hubSize"], "MergeValues must not mutate the original chart.Values")
}

func TestMergeValues_Errors(t *testing.T) {
	ch := newTestChart()

	_, err := MergeValues(ch, ValuesOptions{ValueFiles: []string{"/nonexistent/values.yaml"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading values file")

	_, err = MergeValues(ch, ValuesOptions{Values: []string{"invalid[bracket"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing --set")
}

func TestMergeValues_SetBelowNullDefault(t *testing.T) {
	ch := newTestChart()
	ch.Values["hubconfig"].(map[string]interface{})["nodeSelector"] = nil
	ch.Values["global"].(map[string]interface{})["pullSecret"] = nil

	vals, err := MergeValues(ch, ValuesOptions{
		Values:       []string{"hubconfig.nodeSelector.role=infra"},
		StringValues: []string{"global.pullSecret.name=pull-secret"},
	})
	require.NoError(t, err)

	hub := vals["hubconfig"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"role": "infra"}, hub["nodeSelector"])
	assert.Equal(t, "Small", hub["hubSize"])

	global := vals["global"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"name": "pull-secret"}, global["pullSecret"])
	assert.Equal(t, "open-cluster-management", global["namespace"])

	assert.Nil(t, ch.Values["hubconfig"].(map[string]interface{})["nodeSelector"])

	out, err := New(DefaultRenderOptions()).Render(context.Background(), ch, vals)
	require.NoError(t, err)
	assert.Contains(t, string(out), "      nodeSelector:\n        role: infra")
}
