package chartify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
	"github.com/stolostron/installer-dev-tools-sub000/internal/gate"
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
)

func discardGate(branch string) *gate.Gate {
	return gate.New(branch, gate.WithLogger(logging.Discard()))
}

func TestNew_StagesFollowGates(t *testing.T) {
	tests := []struct {
		name   string
		branch string
		skip   bool
		want   []string
	}{
		{"main runs everything", "main", false, []string{"namespace", "image", "rbac", "security", "deployment"}},
		{"2.12 predates namespace templating", "release-2.12", false, []string{"image", "rbac", "security", "deployment"}},
		{"2.9 predates security contexts", "release-2.9", false, []string{"image", "rbac", "deployment"}},
		{"rbac skipped", "backplane-2.7", true, []string{"namespace", "image", "security", "deployment"}},
		{"unrecognized branch fails closed", "feature-x", false, []string{"image", "rbac", "deployment"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tgt := &config.Target{Name: "chart", SkipRBACOverrides: tt.skip}
			p := New(Options{Target: tgt, Gate: discardGate(tt.branch)})
			assert.Equal(t, tt.want, p.Stages())
		})
	}
}

func TestNew_ConfiguredThreshold(t *testing.T) {
	tgt := &config.Target{Gates: config.Gates{
		NamespaceTemplating: &gate.Threshold{Release: "2.10", Backplane: "2.5", OCM: "2.10"},
	}}

	p := New(Options{Target: tgt, Gate: discardGate("release-2.12")})
	assert.Equal(t, "namespace", p.Stages()[0])
}

func TestPipeline_Run(t *testing.T) {
	deploy := makeDeployment("manager", makeContainer("manager", "quay.io/stolostron/manager:1"))
	role := makeResource(map[string]interface{}{
		"kind":     "Role",
		"metadata": map[string]interface{}{"name": "manager"},
	})

	tgt := &config.Target{Name: "chart", ImageMappings: map[string]string{"manager": "manager"}}
	p := New(Options{Target: tgt, Gate: discardGate("main")})

	result, err := p.Run(context.Background(), tableOf(deploy, role))
	require.NoError(t, err)

	assert.Equal(t, []string{"manager"}, result.Values.Keys())
	assert.Equal(t, DefaultNamespaceExpr, namespaceOf(deploy))
	assert.Equal(t, "{{ .Values.org }}:{{ .Chart.Name }}:manager", role.CurrentName())
	assert.Equal(t, map[string]interface{}{}, containerAt(deploy, 0)["env"])
	assert.Equal(t, "", podSpecOf(deploy)["nodeSelector"])
	assert.NotEmpty(t, result.Changes)
}

type failingStage struct{ calls *int }

func (f failingStage) Name() string { return "failing" }

func (f failingStage) Apply(context.Context, *k8s.Table, *Result) error {
	*f.calls++
	return errors.New("boom")
}

func TestPipeline_StopsOnError(t *testing.T) {
	calls := 0
	p := NewWithStages(failingStage{calls: &calls}, failingStage{calls: &calls})

	_, err := p.Run(context.Background(), k8s.NewTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage failing: boom")
	assert.Equal(t, 1, calls)
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := NewWithStages(failingStage{calls: &calls}).Run(ctx, k8s.NewTable())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestPipeline_UnmappedImageIsTyped(t *testing.T) {
	deploy := makeDeployment("manager", makeContainer("manager", "quay.io/x/unknown:1"))
	p := New(Options{Target: &config.Target{}, Gate: discardGate("main")})

	_, err := p.Run(context.Background(), tableOf(deploy))

	var unmapped *UnmappedImageError
	require.ErrorAs(t, err, &unmapped)
	assert.Equal(t, []string{"unknown"}, unmapped.Repositories())
}
