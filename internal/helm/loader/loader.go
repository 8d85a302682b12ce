// Package loader loads the chart skeleton a generated chart starts from.
//
// The skeleton is either the built-in one, a local directory, or a packaged
// .tgz archive.
package loader

import (
	"context"
	"fmt"
	"os"
	"strings"

	"helm.sh/helm/v3/pkg/chart"
)

// SourceType identifies the origin of a chart skeleton.
type SourceType int

const (
	// SourceUnknown indicates the source type could not be determined.
	SourceUnknown SourceType = iota
	// SourceBuiltin is the skeleton compiled into the binary.
	SourceBuiltin
	// SourceDirectory is a local directory containing Chart.yaml.
	SourceDirectory
	// SourceArchive is a .tgz or .tar.gz packaged chart.
	SourceArchive
)

// String returns a human-readable name for the source type.
func (s SourceType) String() string {
	switch s {
	case SourceUnknown:
		return "unknown"
	case SourceBuiltin:
		return "builtin"
	case SourceDirectory:
		return "directory"
	case SourceArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// LoadOptions configures skeleton loading behaviour.
type LoadOptions struct {
	// MaxArchiveSize is the maximum allowed archive size in bytes.
	// Zero means use the default (100 MB).
	MaxArchiveSize int64
}

// DefaultMaxArchiveSize is 100 MB.
const DefaultMaxArchiveSize int64 = 100 * 1024 * 1024

// effectiveMaxArchiveSize returns the archive size limit, falling back to
// DefaultMaxArchiveSize when not configured.
func (o *LoadOptions) effectiveMaxArchiveSize() int64 {
	if o.MaxArchiveSize > 0 {
		return o.MaxArchiveSize
	}

	return DefaultMaxArchiveSize
}

// Loader loads a chart skeleton from a given reference.
type Loader interface {
	// Load resolves ref according to opts and returns the in-memory chart.
	Load(ctx context.Context, ref string, opts LoadOptions) (*chart.Chart, error)
}

// Detect classifies the skeleton reference. An empty reference selects the
// built-in skeleton.
func Detect(ref string) (SourceType, error) {
	if ref == "" {
		return SourceBuiltin, nil
	}

	if strings.HasSuffix(ref, ".tgz") || strings.HasSuffix(ref, ".tar.gz") {
		return SourceArchive, nil
	}

	if info, err := os.Stat(ref); err == nil && info.IsDir() {
		return SourceDirectory, nil
	}

	return SourceUnknown, fmt.Errorf("chart skeleton %q is neither a directory nor a chart archive", ref)
}
