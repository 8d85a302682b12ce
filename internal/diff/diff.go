// Package diff compares a generated chart with the chart already on disk.
package diff

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Status describes how a chart file changed.
type Status string

// File statuses.
const (
	Added    Status = "added"
	Removed  Status = "removed"
	Modified Status = "modified"
)

// FileDiff is the unified diff of one chart file.
type FileDiff struct {
	Path    string
	Status  Status
	Unified string
}

// Result holds the per-file differences, sorted by path.
type Result struct {
	Files []FileDiff
}

// HasDifferences reports whether any file changed.
func (r *Result) HasDifferences() bool {
	return len(r.Files) > 0
}

// Options configures diff computation.
type Options struct {
	OldLabel string
	NewLabel string
	Context  int
}

// DefaultOptions returns the labels and context used by convert --diff.
func DefaultOptions() Options {
	return Options{
		OldLabel: "existing",
		NewLabel: "generated",
		Context:  3,
	}
}

// Compute diffs two sets of chart files keyed by their path inside the chart.
func Compute(existing, generated map[string][]byte, opts Options) (*Result, error) {
	paths := map[string]bool{}
	for p := range existing {
		paths[p] = true
	}

	for p := range generated {
		paths[p] = true
	}

	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}

	sort.Strings(sorted)

	result := &Result{}

	for _, p := range sorted {
		oldData, hadOld := existing[p]
		newData, hasNew := generated[p]

		status := Modified

		switch {
		case !hadOld:
			status = Added
		case !hasNew:
			status = Removed
		}

		unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        splitLines(string(oldData)),
			B:        splitLines(string(newData)),
			FromFile: opts.OldLabel + "/" + p,
			ToFile:   opts.NewLabel + "/" + p,
			Context:  opts.Context,
		})
		if err != nil {
			return nil, fmt.Errorf("computing diff of %s: %w", p, err)
		}

		if unified == "" {
			continue
		}

		result.Files = append(result.Files, FileDiff{Path: p, Status: status, Unified: unified})
	}

	return result, nil
}

// ReadChart reads the generated parts of the chart at dir: values.yaml and
// everything below templates/ and crds/. A missing directory reads as an
// empty chart.
func ReadChart(dir string) (map[string][]byte, error) {
	files := map[string][]byte{}

	data, err := os.ReadFile(filepath.Join(dir, "values.yaml")) //nolint:gosec // chart path is user-supplied
	switch {
	case err == nil:
		files["values.yaml"] = data
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("reading values.yaml: %w", err)
	}

	for _, sub := range []string{"templates", "crds"} {
		root := filepath.Join(dir, sub)

		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				return nil
			}

			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(path) //nolint:gosec // path comes from WalkDir
			if err != nil {
				return err
			}

			files[filepath.ToSlash(rel)] = data

			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", root, err)
		}
	}

	return files, nil
}

// Write prints the diff of every changed file, optionally with ANSI colors.
func Write(w io.Writer, r *Result, color bool) {
	if !r.HasDifferences() {
		_, _ = fmt.Fprintln(w, "No differences found.")
		return
	}

	for _, f := range r.Files {
		for _, line := range strings.Split(strings.TrimSuffix(f.Unified, "\n"), "\n") {
			if color {
				writeColorLine(w, line)
			} else {
				_, _ = fmt.Fprintln(w, line)
			}
		}
	}
}

// Summary returns one "status path" line per changed file.
func (r *Result) Summary() string {
	var b strings.Builder
	for _, f := range r.Files {
		fmt.Fprintf(&b, "%-8s %s\n", f.Status, f.Path)
	}

	return b.String()
}

func writeColorLine(w io.Writer, line string) {
	const (
		red   = "\033[31m"
		green = "\033[32m"
		cyan  = "\033[36m"
		bold  = "\033[1m"
		reset = "\033[0m"
	)

	switch {
	case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", bold, line, reset)
	case strings.HasPrefix(line, "@@"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", cyan, line, reset)
	case strings.HasPrefix(line, "-"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", red, line, reset)
	case strings.HasPrefix(line, "+"):
		_, _ = fmt.Fprintf(w, "%s%s%s\n", green, line, reset)
	default:
		_, _ = fmt.Fprintln(w, line)
	}
}

// splitLines keeps line terminators, which difflib expects.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}

	return strings.SplitAfter(s, "\n")
}
