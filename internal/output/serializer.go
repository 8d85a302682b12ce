package output

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/stolostron/installer-dev-tools-sub000/internal/yamlutil"
)

// SerializeOptions configures the YAML serializer.
type SerializeOptions struct {
	// Indent is the number of spaces per indentation level (default: 2).
	Indent int
}

// DefaultSerializeOptions returns sensible defaults.
func DefaultSerializeOptions() SerializeOptions {
	return SerializeOptions{Indent: 2}
}

// leadingKeys are emitted first, in this order, at the top of a document.
var leadingKeys = []string{"apiVersion", "kind", "metadata"}

// Serialize converts obj to block-style YAML. Top-level apiVersion, kind
// and metadata come first; every other mapping is sorted by key. Empty
// strings are emitted as "" and empty maps as {}, which the flow-control
// injector relies on to find its anchors.
func Serialize(obj map[string]interface{}, opts SerializeOptions) ([]byte, error) {
	if opts.Indent == 0 {
		opts.Indent = 2
	}

	var node yaml.Node
	if err := node.Encode(obj); err != nil {
		return nil, fmt.Errorf("encoding YAML node: %w", err)
	}

	hoistLeadingKeys(&node)

	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(opts.Indent)

	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("serializing YAML: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("serializing YAML: %w", err)
	}

	b := buf.Bytes()

	// Ensure trailing newline.
	if len(b) > 0 && b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}

	return b, nil
}

// SerializeAll serializes every object into one multi-document stream.
func SerializeAll(objs []map[string]interface{}, opts SerializeOptions) ([]byte, error) {
	docs := make([][]byte, 0, len(objs))

	for i, obj := range objs {
		b, err := Serialize(obj, opts)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}

		docs = append(docs, b)
	}

	return yamlutil.JoinDocuments(docs), nil
}

// hoistLeadingKeys reorders the pairs of a top-level mapping node so the
// leading keys come first.
func hoistLeadingKeys(node *yaml.Node) {
	m := node
	if m.Kind == yaml.DocumentNode && len(m.Content) == 1 {
		m = m.Content[0]
	}

	if m.Kind != yaml.MappingNode {
		return
	}

	content := make([]*yaml.Node, 0, len(m.Content))
	taken := make(map[int]bool, len(leadingKeys))

	for _, key := range leadingKeys {
		for i := 0; i+1 < len(m.Content); i += 2 {
			if m.Content[i].Value == key {
				content = append(content, m.Content[i], m.Content[i+1])
				taken[i] = true

				break
			}
		}
	}

	for i := 0; i+1 < len(m.Content); i += 2 {
		if !taken[i] {
			content = append(content, m.Content[i], m.Content[i+1])
		}
	}

	m.Content = content
}
