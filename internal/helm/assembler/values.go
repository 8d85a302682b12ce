package assembler

import (
	"bytes"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// placeholderKey is the dummy image override shipped in chart skeletons.
const placeholderKey = "imageOverride"

// MergeImageOverrides adds every key to global.imageOverrides of the
// values document data, each with an empty value. Keys that already exist
// keep their value and the placeholder key is removed. Comments and key
// order of data are kept.
func MergeImageOverrides(data []byte, keys []string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing values.yaml: %w", err)
	}

	if len(doc.Content) == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{mappingNode()}}
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("values.yaml: top level is not a mapping")
	}

	overrides := childMapping(childMapping(root, "global"), "imageOverrides")

	removeKey(overrides, placeholderKey)

	for _, k := range keys {
		if k == placeholderKey || lookup(overrides, k) != nil {
			continue
		}

		overrides.Content = append(overrides.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "", Style: yaml.DoubleQuotedStyle},
		)
	}

	if len(overrides.Content) > 0 {
		overrides.Style = 0
	}

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("serializing values.yaml: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("serializing values.yaml: %w", err)
	}

	return buf.Bytes(), nil
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

// lookup returns the value node of key in mapping m, or nil.
func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}

	return nil
}

// childMapping returns the mapping stored under key, creating it or
// replacing a non-mapping value.
func childMapping(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value != key {
			continue
		}

		v := m.Content[i+1]
		if v.Kind != yaml.MappingNode {
			v = mappingNode()
			m.Content[i+1] = v
		}

		return v
	}

	v := mappingNode()
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, v)

	return v
}

func removeKey(m *yaml.Node, key string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content = append(m.Content[:i], m.Content[i+2:]...)
			return
		}
	}
}
