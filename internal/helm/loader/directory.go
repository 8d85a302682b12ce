package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"helm.sh/helm/v3/pkg/chart"
)

// DirectoryLoader loads a chart skeleton from an unpacked chart directory.
type DirectoryLoader struct{}

// NewDirectoryLoader creates a DirectoryLoader.
func NewDirectoryLoader() *DirectoryLoader {
	return &DirectoryLoader{}
}

// Load reads every non-hidden file below ref. The directory must hold a
// Chart.yaml at its top level.
func (l *DirectoryLoader) Load(_ context.Context, ref string, _ LoadOptions) (*chart.Chart, error) {
	info, err := os.Stat(ref)
	if err != nil {
		return nil, fmt.Errorf("skeleton directory %q: %w", ref, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("skeleton %q is not a directory", ref)
	}

	fsys := os.DirFS(ref)

	if _, err := fs.Stat(fsys, "Chart.yaml"); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("skeleton directory %q has no Chart.yaml", ref)
	}

	ch, err := loadFS(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("loading skeleton directory %q: %w", ref, err)
	}

	return ch, nil
}
