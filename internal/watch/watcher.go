// Package watch re-runs the conversion whenever the bundle or its
// configuration changes on disk.
package watch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc regenerates the chart once.
type RunFunc func(ctx context.Context) (*RunResult, error)

// RunResult summarises one regeneration for the status line.
type RunResult struct {
	Resources int
	ImageKeys int
	Warnings  int

	// ChartDir is where the chart was written, empty on dry runs.
	ChartDir string

	// Changed lists the chart files that differ from the previous output.
	Changed []string
}

// Options configures the watcher.
type Options struct {
	// BundleDir is watched recursively.
	BundleDir string

	// ExtraFiles are watched individually (target file, sizes file).
	ExtraFiles []string

	// Ignore lists directories whose events never trigger a run, such as
	// an output directory inside the bundle.
	Ignore []string

	// Debounce is the quiet period before a run.
	Debounce time.Duration

	Logger *slog.Logger

	// Out receives the per-run status lines.
	Out io.Writer
}

// DefaultOptions returns the options used by the watch command.
func DefaultOptions() Options {
	return Options{
		Debounce: 500 * time.Millisecond,
		Logger:   slog.Default(),
		Out:      os.Stderr,
	}
}

// Run performs an initial run, then one run per debounced burst of changes,
// until ctx is cancelled or SIGINT/SIGTERM arrives. Failed runs are reported
// and watching continues.
func Run(ctx context.Context, opts Options, runFn RunFunc) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Out == nil {
		opts.Out = io.Discard
	}

	ignore := make([]string, 0, len(opts.Ignore))
	for _, p := range opts.Ignore {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving ignored path %q: %w", p, err)
		}

		ignore = append(ignore, abs)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, opts.BundleDir, ignore); err != nil {
		return fmt.Errorf("watching bundle directory: %w", err)
	}

	for _, f := range opts.ExtraFiles {
		abs, err := filepath.Abs(f)
		if err != nil {
			return fmt.Errorf("resolving extra file %q: %w", f, err)
		}

		if err := watcher.Add(abs); err != nil {
			return fmt.Errorf("watching file %q: %w", abs, err)
		}
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(opts.Out, "watching %s (debounce=%s)\n", opts.BundleDir, opts.Debounce)

	runs := make(chan []string, 1)

	debouncer := NewDebouncer(opts.Debounce, func(paths []string) {
		select {
		case runs <- paths:
		case <-sigCtx.Done():
		}
	})
	defer debouncer.Stop()

	doRun(sigCtx, opts, runFn, "(initial)")

	for {
		select {
		case <-sigCtx.Done():
			fmt.Fprintln(opts.Out, "shutting down watcher")
			return nil

		case paths := <-runs:
			doRun(sigCtx, opts, runFn, describe(paths))

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !isRelevant(event) || ignored(event.Name, ignore) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					if addErr := addRecursive(watcher, event.Name, ignore); addErr != nil {
						opts.Logger.Warn("watching new directory", slog.String("path", event.Name), slog.Any("error", addErr))
					}
				}
			}

			debouncer.Trigger(event.Name)

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

func doRun(ctx context.Context, opts Options, runFn RunFunc, trigger string) {
	now := time.Now().Format("15:04:05")

	result, err := runFn(ctx)
	if err != nil {
		fmt.Fprintf(opts.Out, "[%s] %s: ERROR: %v\n", now, trigger, err)
		return
	}

	fmt.Fprintf(opts.Out, "[%s] %s: OK (%d resources, %d image keys, %d warnings)\n",
		now, trigger, result.Resources, result.ImageKeys, result.Warnings)

	if len(result.Changed) > 0 {
		fmt.Fprintf(opts.Out, "  changed: %s\n", strings.Join(result.Changed, ", "))
	}

	if result.ChartDir != "" {
		fmt.Fprintf(opts.Out, "  written: %s\n", result.ChartDir)
	}
}

func describe(paths []string) string {
	if len(paths) == 1 {
		return paths[0]
	}

	return fmt.Sprintf("%s (+%d more)", paths[0], len(paths)-1)
}

// addRecursive adds root and its subdirectories, skipping hidden and
// ignored ones.
func addRecursive(watcher *fsnotify.Watcher, root string, ignore []string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != root && (strings.HasPrefix(d.Name(), ".") || ignored(path, ignore)) {
			return filepath.SkipDir
		}

		return watcher.Add(path)
	})
}

// ignored reports whether path lies inside one of the ignored directories.
func ignored(path string, ignore []string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	for _, dir := range ignore {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

// isRelevant filters out metadata-only events and editor scratch files.
func isRelevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	return !strings.HasPrefix(name, ".") && !strings.HasSuffix(name, "~") &&
		!strings.HasSuffix(name, ".swp") && !strings.HasPrefix(name, "#")
}
