// Package bundle reads an OLM operator bundle from disk and expands its
// ClusterServiceVersion install strategy into plain resources.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s"
	"github.com/stolostron/installer-dev-tools-sub000/internal/k8s/parser"
	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
)

// manifestsDir is the conventional bundle subdirectory holding manifests.
const manifestsDir = "manifests"

// ErrNoCSV is returned when a bundle holds no ClusterServiceVersion.
var ErrNoCSV = errors.New("no ClusterServiceVersion found in bundle")

// Bundle is a loaded operator bundle.
type Bundle struct {
	// Dir is the manifests directory that was read.
	Dir string

	// CSV is the bundle's ClusterServiceVersion.
	CSV *k8s.Resource

	// Resources holds the expanded install strategy followed by every
	// other document in the bundle, in read order.
	Resources []*k8s.Resource
}

// Description returns the CSV's description annotation.
func (b *Bundle) Description() string {
	return b.CSV.Object.GetAnnotations()["description"]
}

// Version returns the CSV's spec.version, or "".
func (b *Bundle) Version() string {
	spec, _ := b.CSV.Object.Object["spec"].(map[string]interface{})
	v, _ := spec["version"].(string)

	return v
}

// Options configures Load.
type Options struct {
	// ExtraPaths are additional files or directories, relative to the
	// bundle, whose documents are appended after the bundle's own.
	ExtraPaths []string
}

// Load reads the bundle at dir. dir may be the bundle root or its
// manifests directory.
func Load(ctx context.Context, dir string, opts Options) (*Bundle, error) {
	logger := logging.FromContext(ctx)

	manifests := dir
	if fi, err := os.Stat(filepath.Join(dir, manifestsDir)); err == nil && fi.IsDir() {
		manifests = filepath.Join(dir, manifestsDir)
	}

	logger.Info("reading bundle", slog.String("dir", manifests))

	docs, err := readDir(ctx, manifests)
	if err != nil {
		return nil, err
	}

	for _, extra := range opts.ExtraPaths {
		p := extra
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, extra)
		}

		more, err := readPath(ctx, p)
		if err != nil {
			return nil, fmt.Errorf("reading extra manifests %q: %w", extra, err)
		}

		docs = append(docs, more...)
	}

	var (
		csv  *k8s.Resource
		rest []*k8s.Resource
	)

	for _, r := range docs {
		if r.Kind() != k8s.KindClusterServiceVersion {
			rest = append(rest, r)
			continue
		}

		if csv != nil {
			return nil, fmt.Errorf("bundle %s: multiple ClusterServiceVersions (%s, %s)", manifests, csv.SourcePath, r.SourcePath)
		}

		csv = r
	}

	if csv == nil {
		return nil, fmt.Errorf("bundle %s: %w", manifests, ErrNoCSV)
	}

	expanded, err := ExpandCSV(csv)
	if err != nil {
		return nil, err
	}

	logger.Info("expanded install strategy",
		slog.String("csv", csv.Name),
		slog.Int("resources", len(expanded)),
		slog.Int("bundleDocuments", len(rest)),
	)

	return &Bundle{
		Dir:       manifests,
		CSV:       csv,
		Resources: append(expanded, rest...),
	}, nil
}

func readPath(ctx context.Context, path string) ([]*k8s.Resource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if fi.IsDir() {
		return readDir(ctx, path)
	}

	return readFile(ctx, path)
}

// readDir parses every YAML file directly under dir in name order.
func readDir(ctx context.Context, dir string) ([]*k8s.Resource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading bundle directory: %w", err)
	}

	var out []*k8s.Resource

	for _, e := range entries {
		if e.IsDir() || !IsManifestFile(e.Name()) {
			continue
		}

		docs, err := readFile(ctx, filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}

		out = append(out, docs...)
	}

	return out, nil
}

func readFile(ctx context.Context, path string) ([]*k8s.Resource, error) {
	data, err := os.ReadFile(path) //nolint:gosec // bundle paths are user-supplied
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return parser.NewParser().Parse(ctx, path, data)
}

// IsManifestFile reports whether name has a YAML extension.
func IsManifestFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
