package watch

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces bursts of file events. The callback fires once the
// interval has passed without a new event and receives every distinct path
// seen during the burst, sorted.
type Debouncer struct {
	interval time.Duration
	callback func(paths []string)

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
}

// NewDebouncer creates a debouncer firing callback after interval of quiet.
func NewDebouncer(interval time.Duration, callback func(paths []string)) *Debouncer {
	return &Debouncer{
		interval: interval,
		callback: callback,
		pending:  map[string]struct{}{},
	}
}

// Trigger records an event for path and restarts the quiet period.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[path] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("debouncer callback panicked", slog.Any("error", r))
		}
	}()

	d.mu.Lock()
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}

	d.pending = map[string]struct{}{}
	d.mu.Unlock()

	if len(paths) == 0 {
		return
	}

	sort.Strings(paths)
	d.callback(paths)
}

// Stop cancels any pending callback and drops the recorded paths.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.pending = map[string]struct{}{}
}
