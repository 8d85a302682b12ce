package chartify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stolostron/installer-dev-tools-sub000/internal/config"
)

func TestDeploymentStage_Standardizes(t *testing.T) {
	deploy := makeDeployment("manager", makeContainer("manager", "img"))
	podSpecOf(deploy)["tolerations"] = []interface{}{map[string]interface{}{"key": "x"}}
	podSpecOf(deploy)["hostNetwork"] = true

	tgt := &config.Target{AutomountServiceAccountToken: false}

	result := &Result{}
	require.NoError(t, NewDeploymentStage(tgt, nil).Apply(context.Background(), tableOf(deploy), result))

	podSpec := podSpecOf(deploy)
	assert.Equal(t, "", podSpec["tolerations"])
	assert.Equal(t, "", podSpec["nodeSelector"])
	assert.Equal(t, "", podSpec["imagePullSecrets"])
	assert.Equal(t, false, podSpec["hostNetwork"])
	assert.Equal(t, false, podSpec["hostPID"])
	assert.Equal(t, false, podSpec["hostIPC"])
	assert.Equal(t, false, podSpec["automountServiceAccountToken"])

	labels := deploy.Object.Object["spec"].(map[string]interface{})["template"].(map[string]interface{})["metadata"].(map[string]interface{})["labels"].(map[string]interface{})
	assert.Equal(t, "manager", labels[AntiAffinityLabel])
	assert.Equal(t, "manager", labels["app"])

	terms := podSpec["affinity"].(map[string]interface{})["podAntiAffinity"].(map[string]interface{})["preferredDuringSchedulingIgnoredDuringExecution"].([]interface{})
	require.Len(t, terms, 2)

	for _, term := range terms {
		expr := term.(map[string]interface{})["podAffinityTerm"].(map[string]interface{})["labelSelector"].(map[string]interface{})["matchExpressions"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, []interface{}{"manager"}, expr["values"])
	}

	assert.NotContains(t, containerAt(deploy, 0), "resources")
}

func TestDeploymentStage_AffinityNotShared(t *testing.T) {
	a := makeDeployment("a", makeContainer("c", "img"))
	b := makeDeployment("b", makeContainer("c", "img"))

	stage := NewDeploymentStage(&config.Target{}, nil)
	require.NoError(t, stage.Apply(context.Background(), tableOf(a, b), &Result{}))

	valueOf := func(podSpec map[string]interface{}) interface{} {
		terms := podSpec["affinity"].(map[string]interface{})["podAntiAffinity"].(map[string]interface{})["preferredDuringSchedulingIgnoredDuringExecution"].([]interface{})
		return terms[0].(map[string]interface{})["podAffinityTerm"].(map[string]interface{})["labelSelector"].(map[string]interface{})["matchExpressions"].([]interface{})[0].(map[string]interface{})["values"]
	}

	assert.Equal(t, []interface{}{"a"}, valueOf(podSpecOf(a)))
	assert.Equal(t, []interface{}{"b"}, valueOf(podSpecOf(b)))
	assert.Equal(t, []interface{}{"REPLACE"}, valueOf(map[string]interface{}{"affinity": DefaultAffinity()}))
}

func TestDeploymentStage_InvalidAutomountWarns(t *testing.T) {
	deploy := makeDeployment("manager", makeContainer("manager", "img"))

	result := &Result{}
	tgt := &config.Target{AutomountServiceAccountToken: "yes"}
	require.NoError(t, NewDeploymentStage(tgt, nil).Apply(context.Background(), tableOf(deploy), result))

	assert.NotContains(t, podSpecOf(deploy), "automountServiceAccountToken")
	assert.Len(t, result.Warnings, 1)
}

func TestDeploymentStage_SizedContainers(t *testing.T) {
	deploy := makeDeployment("manager", makeContainer("manager", "img"), makeContainer("proxy", "img"))

	tgt := &config.Target{Sizes: &config.Sizes{Deployments: []config.SizedDeployment{{
		Name:       "manager",
		Containers: []config.SizedContainer{{Name: "manager"}, {Name: "proxy"}},
	}}}}

	require.NoError(t, NewDeploymentStage(tgt, nil).Apply(context.Background(), tableOf(deploy), &Result{}))

	assert.Equal(t, "REPLACE-manager", containerAt(deploy, 0)["resources"])
	assert.Equal(t, "REPLACE-proxy", containerAt(deploy, 1)["resources"])
}

func TestDeploymentStage_MissingSizedContainer(t *testing.T) {
	deploy := makeDeployment("manager", makeContainer("manager", "img"), makeContainer("sidecar", "img"))

	tgt := &config.Target{Sizes: &config.Sizes{Deployments: []config.SizedDeployment{{
		Name:       "manager",
		Containers: []config.SizedContainer{{Name: "manager"}},
	}}}}

	err := NewDeploymentStage(tgt, nil).Apply(context.Background(), tableOf(deploy), &Result{})

	var sizeErr *config.MissingSizeTierError
	require.True(t, errors.As(err, &sizeErr))
	require.Len(t, sizeErr.Gaps, 1)
	assert.Equal(t, "sidecar", sizeErr.Gaps[0].Container)
}

func TestDeploymentStage_AutomountTrue(t *testing.T) {
	deploy := makeDeployment("manager", makeContainer("manager", "img"))

	result := &Result{}
	tgt := &config.Target{AutomountServiceAccountToken: true}
	require.NoError(t, NewDeploymentStage(tgt, nil).Apply(context.Background(), tableOf(deploy), result))

	assert.Equal(t, true, podSpecOf(deploy)["automountServiceAccountToken"])
	assert.Empty(t, result.Warnings)
}
