// Package maputil provides helpers for the untyped object trees that bundle
// documents decode into.
package maputil

// DeepCopyMap performs a deep copy of a map[string]interface{}.
func DeepCopyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}

	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}

	return dst
}

// DeepCopySlice performs a deep copy of a []interface{}.
func DeepCopySlice(src []interface{}) []interface{} {
	if src == nil {
		return nil
	}

	dst := make([]interface{}, len(src))
	for i, v := range src {
		dst[i] = deepCopyValue(v)
	}

	return dst
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return DeepCopyMap(val)
	case []interface{}:
		return DeepCopySlice(val)
	default:
		return v
	}
}

// NestedMap walks keys from m and returns the map found there, or nil.
func NestedMap(m map[string]interface{}, keys ...string) map[string]interface{} {
	cur := m

	for _, k := range keys {
		next, ok := cur[k].(map[string]interface{})
		if !ok {
			return nil
		}

		cur = next
	}

	return cur
}
