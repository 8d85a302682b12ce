package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Writer receives the files of a generated chart.
type Writer interface {
	// WriteFile stores data under the chart-relative path name.
	WriteFile(name string, data []byte) error
}

// StreamWriter lists chart files on a single stream. Each file becomes one
// document introduced by a "# Source:" comment, the way helm template
// prints a release.
type StreamWriter struct {
	out io.Writer
}

// NewStreamWriter creates a StreamWriter. A nil w selects os.Stdout.
func NewStreamWriter(w io.Writer) *StreamWriter {
	if w == nil {
		w = os.Stdout
	}

	return &StreamWriter{out: w}
}

// WriteFile appends one document for name.
func (s *StreamWriter) WriteFile(name string, data []byte) error {
	if _, err := fmt.Fprintf(s.out, "---\n# Source: %s\n%s", name, data); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return nil
}

// DirWriter places chart files below a root directory. Every file is
// written to a hidden sibling and renamed over its target.
type DirWriter struct {
	root   string
	perm   os.FileMode
	logger *slog.Logger
}

// DirWriterOption configures a DirWriter.
type DirWriterOption func(*DirWriter)

// WithPermissions sets the mode of files written by WriteFile (default 0644).
func WithPermissions(perm os.FileMode) DirWriterOption {
	return func(d *DirWriter) {
		d.perm = perm
	}
}

// WithLogger sets the logger that reports replaced files.
func WithLogger(logger *slog.Logger) DirWriterOption {
	return func(d *DirWriter) {
		d.logger = logger
	}
}

// NewDirWriter creates a DirWriter rooted at root.
func NewDirWriter(root string, opts ...DirWriterOption) *DirWriter {
	d := &DirWriter{
		root:   root,
		perm:   0o644,
		logger: slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Root returns the directory files are written below.
func (d *DirWriter) Root() string {
	return d.root
}

// WriteFile writes data to root/name with the configured mode.
func (d *DirWriter) WriteFile(name string, data []byte) error {
	return d.WriteFileMode(name, data, d.perm)
}

// WriteFileMode writes data to root/name with mode perm. Names that are
// absolute or climb out of the root are refused.
func (d *DirWriter) WriteFileMode(name string, data []byte, perm os.FileMode) error {
	if !filepath.IsLocal(name) {
		return fmt.Errorf("chart file %q is outside %s", name, d.root)
	}

	target := filepath.Join(d.root, name)
	dir := filepath.Dir(target)

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	if _, err := os.Stat(target); err == nil {
		d.logger.Debug("replacing chart file", slog.String("file", name))
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	_, err = tmp.Write(data)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err == nil {
		err = os.Chmod(tmp.Name(), perm)
	}

	if err == nil {
		err = os.Rename(tmp.Name(), target)
	}

	if err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}

	return nil
}
