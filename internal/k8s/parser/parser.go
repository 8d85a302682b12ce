// Package parser splits multi-document YAML manifests and parses them into
// k8s.Resource structs.
package parser

import (
	"context"
	"fmt"

	utilyaml "k8s.io/apimachinery/pkg/util/yaml"

	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/yamlutil"
)

// Parser parses raw manifests into k8s Resources.
type Parser interface {
	Parse(ctx context.Context, source string, manifests []byte) ([]*k8s.Resource, error)
}

// compile-time interface conformance check.
var _ Parser = (*DefaultParser)(nil)

// DefaultParser is the default implementation of the Parser interface.
type DefaultParser struct{}

// NewParser creates a new DefaultParser.
func NewParser() *DefaultParser {
	return &DefaultParser{}
}

// Parse splits the manifests into documents and parses each into a Resource
// tagged with source. Empty and null documents are dropped. Documents
// without a kind are kept so the classifier can report them.
func (p *DefaultParser) Parse(ctx context.Context, source string, manifests []byte) ([]*k8s.Resource, error) {
	var resources []*k8s.Resource

	for i, doc := range yamlutil.SplitDocuments(manifests) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var obj map[string]interface{}
		// Integers decode as int64 so they serialize back without exponents.
		if err := utilyaml.Unmarshal(doc, &obj); err != nil {
			return nil, fmt.Errorf("parsing %s document %d: %w", source, i, err)
		}

		if obj == nil {
			continue
		}

		resources = append(resources, k8s.NewResource(obj, source))
	}

	return resources, nil
}
