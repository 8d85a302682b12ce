package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"helm.sh/helm/v3/pkg/chart"
)

func skeletonChart() *chart.Chart {
	return &chart.Chart{
		Metadata: &chart.Metadata{APIVersion: "v2", Name: "base", Version: "0.1.0", Type: "application"},
		Raw:      []*chart.File{{Name: "values.yaml", Data: []byte("global: {}\n")}},
		Values:   map[string]interface{}{"global": map[string]interface{}{}},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*chart.Chart)
		reason string
	}{
		{name: "usable", mutate: func(*chart.Chart) {}},
		{
			name:   "library",
			mutate: func(ch *chart.Chart) { ch.Metadata.Type = "library" },
			reason: "library charts",
		},
		{
			name: "declared dependency",
			mutate: func(ch *chart.Chart) {
				ch.Metadata.Dependencies = []*chart.Dependency{{Name: "common", Version: "1.0.0"}}
			},
			reason: "dependencies are not supported",
		},
		{
			name:   "vendored dependency",
			mutate: func(ch *chart.Chart) { ch.AddDependency(skeletonChart()) },
			reason: "dependencies are not supported",
		},
		{
			name:   "no values file",
			mutate: func(ch *chart.Chart) { ch.Raw = nil },
			reason: "values.yaml is missing",
		},
		{
			name:   "no global mapping",
			mutate: func(ch *chart.Chart) { ch.Values = map[string]interface{}{"global": "x"} },
			reason: "no global mapping",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := skeletonChart()
			tt.mutate(ch)

			err := Validate(ch)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}

			var se *SkeletonError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "base", se.Chart)
			assert.Contains(t, se.Reason, tt.reason)
		})
	}
}

func TestMultiLoader_Load_RejectsUnusableSkeleton(t *testing.T) {
	chartDir := createTestSkeleton(t, t.TempDir(), "lib", "1.0.0")
	writeChartYAML(t, chartDir, "apiVersion: v2\nname: lib\nversion: 1.0.0\ntype: library\n")

	_, err := NewMultiLoader().Load(context.Background(), chartDir, LoadOptions{})

	var se *SkeletonError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "lib", se.Chart)
}
