package loader

import (
	"context"
	"fmt"

	"helm.sh/helm/v3/pkg/chart"
)

// MultiLoader implements the Loader interface by auto-detecting the source
// type and delegating to the appropriate specialised loader.
type MultiLoader struct {
	builtin   *BuiltinLoader
	directory *DirectoryLoader
	archive   *ArchiveLoader
}

// NewMultiLoader creates a MultiLoader with all source-type loaders initialised.
func NewMultiLoader() *MultiLoader {
	return &MultiLoader{
		builtin:   NewBuiltinLoader(),
		directory: NewDirectoryLoader(),
		archive:   NewArchiveLoader(),
	}
}

// Load auto-detects the skeleton source type, delegates to the matching
// loader and checks the result with Validate.
func (m *MultiLoader) Load(ctx context.Context, ref string, opts LoadOptions) (*chart.Chart, error) {
	st, err := Detect(ref)
	if err != nil {
		return nil, err
	}

	var l Loader

	switch st {
	case SourceBuiltin:
		l = m.builtin
	case SourceDirectory:
		l = m.directory
	case SourceArchive:
		l = m.archive
	default:
		return nil, fmt.Errorf("unsupported skeleton source type: %s", st)
	}

	ch, err := l.Load(ctx, ref, opts)
	if err != nil {
		return nil, err
	}

	if err := Validate(ch); err != nil {
		return nil, err
	}

	return ch, nil
}
