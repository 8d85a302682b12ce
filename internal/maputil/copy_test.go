package maputil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stolostron/installer-dev-tools-sub000/internal/maputil"
)

func TestDeepCopyMap(t *testing.T) {
	src := map[string]interface{}{
		"name":     "manager",
		"replicas": int64(1),
		"template": map[string]interface{}{
			"labels": map[string]interface{}{"app": "manager"},
			"args":   []interface{}{"--leader-elect", map[string]interface{}{"k": "v"}},
		},
	}

	dst := maputil.DeepCopyMap(src)
	assert.Equal(t, src, dst)

	dst["template"].(map[string]interface{})["labels"].(map[string]interface{})["app"] = "changed"
	dst["template"].(map[string]interface{})["args"].([]interface{})[1].(map[string]interface{})["k"] = "changed"

	tmpl := src["template"].(map[string]interface{})
	assert.Equal(t, "manager", tmpl["labels"].(map[string]interface{})["app"])
	assert.Equal(t, "v", tmpl["args"].([]interface{})[1].(map[string]interface{})["k"])
}

func TestDeepCopy_Nil(t *testing.T) {
	assert.Nil(t, maputil.DeepCopyMap(nil))
	assert.Nil(t, maputil.DeepCopySlice(nil))
}

func TestNestedMap(t *testing.T) {
	m := map[string]interface{}{
		"spec": map[string]interface{}{"install": map[string]interface{}{"strategy": "deployment"}},
	}

	assert.Equal(t, "deployment", maputil.NestedMap(m, "spec", "install")["strategy"])
	assert.Nil(t, maputil.NestedMap(m, "spec", "missing"))
	assert.Equal(t, m, maputil.NestedMap(m))
}
