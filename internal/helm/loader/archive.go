package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"helm.sh/helm/v3/pkg/chart"
	helmloader "helm.sh/helm/v3/pkg/chart/loader"
)

// ArchiveLoader loads a chart skeleton packaged with helm package.
type ArchiveLoader struct{}

// NewArchiveLoader creates an ArchiveLoader.
func NewArchiveLoader() *ArchiveLoader {
	return &ArchiveLoader{}
}

// Load reads the archive into memory and unpacks it. Archives larger than
// the configured limit are refused before they are decompressed.
func (l *ArchiveLoader) Load(_ context.Context, ref string, opts LoadOptions) (*chart.Chart, error) {
	data, err := readArchive(ref, opts.effectiveMaxArchiveSize())
	if err != nil {
		return nil, err
	}

	ch, err := helmloader.LoadArchive(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unpacking skeleton archive %q: %w", ref, err)
	}

	return ch, nil
}

// readArchive returns the archive bytes, failing once more than limit bytes
// have been read.
func readArchive(ref string, limit int64) ([]byte, error) {
	f, err := os.Open(ref) //nolint:gosec // ref is a user-provided skeleton path
	if err != nil {
		return nil, fmt.Errorf("skeleton archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading skeleton archive %q: %w", ref, err)
	}

	if int64(len(data)) > limit {
		return nil, fmt.Errorf("skeleton archive %q exceeds the %d byte limit", ref, limit)
	}

	return data, nil
}
