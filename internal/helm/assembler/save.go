package assembler

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chartutil"

	"github.com/stolostron/installer-dev-tools-sub000/internal/logging"
	"github.com/stolostron/installer-dev-tools-sub000/internal/output"
)

// Save writes ch to outDir/<chart name> and returns that path. The chart
// is staged in a temporary directory next to it and swapped in only once
// complete, so a failed run leaves any previous chart untouched. Files of
// the previous chart whose base name is in preserve are carried over
// instead of their regenerated versions.
func Save(ctx context.Context, ch *chart.Chart, outDir string, preserve []string) (string, error) {
	logger := logging.FromContext(ctx)

	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return "", fmt.Errorf("creating output directory %s: %w", outDir, err)
	}

	staging, err := os.MkdirTemp(outDir, ".bundle2chart-")
	if err != nil {
		return "", fmt.Errorf("creating staging directory: %w", err)
	}

	defer os.RemoveAll(staging) //nolint:errcheck // best-effort cleanup

	if err := chartutil.SaveDir(ch, staging); err != nil {
		return "", fmt.Errorf("saving chart %s: %w", ch.Name(), err)
	}

	staged := filepath.Join(staging, ch.Name())
	dest := filepath.Join(outDir, ch.Name())

	if err := carryOver(dest, staged, preserve, logger); err != nil {
		return "", err
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	previous := ""

	if _, err := os.Stat(dest); err == nil {
		previous = filepath.Join(staging, "previous")
		if err := os.Rename(dest, previous); err != nil {
			return "", fmt.Errorf("moving previous chart aside: %w", err)
		}
	}

	if err := os.Rename(staged, dest); err != nil {
		if previous != "" {
			_ = os.Rename(previous, dest)
		}

		return "", fmt.Errorf("moving chart into place: %w", err)
	}

	logger.Info("chart written", slog.String("path", dest))

	return dest, nil
}

// carryOver copies preserved files of the previous chart at dest into the
// staged chart.
func carryOver(dest, staged string, preserve []string, logger *slog.Logger) error {
	if len(preserve) == 0 {
		return nil
	}

	if _, err := os.Stat(dest); err != nil {
		return nil //nolint:nilerr // nothing to preserve yet
	}

	w := output.NewDirWriter(staged, output.WithLogger(logger))

	return filepath.WalkDir(dest, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !slices.Contains(preserve, d.Name()) {
			return err
		}

		rel, err := filepath.Rel(dest, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("reading preserved file %s: %w", rel, err)
		}

		data, err := os.ReadFile(path) //nolint:gosec // path is below the output directory
		if err != nil {
			return fmt.Errorf("reading preserved file %s: %w", rel, err)
		}

		logger.Info("preserving existing file", slog.String("file", rel))

		return w.WriteFileMode(rel, data, info.Mode().Perm())
	})
}
