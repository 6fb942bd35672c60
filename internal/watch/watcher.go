package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nao1215/deepcheck/internal/model"
)

// Default timings.
const (
	DefaultSettle = 2 * time.Second
	DefaultPoll   = 500 * time.Millisecond
)

// Watcher reports media files in a set of directories once they stop
// changing. A file is emitted when no write or create event was seen for
// the settle interval, so partially copied files are not analyzed.
type Watcher struct {
	fs       *fsnotify.Watcher
	dirs     []string
	settle   time.Duration
	poll     time.Duration
	existing bool
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets how long a file must stay unchanged before it is emitted.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithPoll sets how often pending files are checked.
func WithPoll(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.poll = d
		}
	}
}

// WithExisting also emits supported files already present at start.
func WithExisting(v bool) Option {
	return func(w *Watcher) {
		w.existing = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a watcher over dirs. Every entry must be an existing directory.
func New(dirs []string, opts ...Option) (*Watcher, error) {
	if len(dirs) == 0 {
		return nil, errors.New("no directory to watch")
	}

	w := &Watcher{
		settle:  DefaultSettle,
		poll:    DefaultPoll,
		pending: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}

	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(abs)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", d)
		}
		w.dirs = append(w.dirs, abs)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	for _, d := range w.dirs {
		if err := fsw.Add(d); err != nil {
			_ = fsw.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to watch %s: %w", d, err)
		}
	}
	w.fs = fsw
	return w, nil
}

// Dirs returns the absolute watched directories.
func (w *Watcher) Dirs() []string {
	return w.dirs
}

// Pending returns the number of files waiting to settle.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Run emits settled media file paths on out until ctx ends. It closes the
// underlying watcher before returning; out is never closed.
func (w *Watcher) Run(ctx context.Context, out chan<- string) error {
	defer w.fs.Close()

	if w.existing {
		w.trackExisting()
	}

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case now := <-ticker.C:
			for _, path := range w.settled(now) {
				select {
				case out <- path:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.mu.Lock()
		delete(w.pending, ev.Name)
		w.mu.Unlock()
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		if !model.IsSupported(ev.Name) {
			return
		}
		info, err := os.Stat(ev.Name)
		if err != nil || info.IsDir() {
			return
		}
		w.mu.Lock()
		w.pending[ev.Name] = time.Now()
		w.mu.Unlock()
	}
}

func (w *Watcher) trackExisting() {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, d := range w.dirs {
		entries, err := os.ReadDir(d)
		if err != nil {
			w.logger.Warn("failed to list directory", "dir", d, "error", err)
			continue
		}
		for _, e := range entries {
			path := filepath.Join(d, e.Name())
			if !e.IsDir() && model.IsSupported(path) {
				w.pending[path] = now
			}
		}
	}
}

// settled removes and returns the files unchanged since now-settle.
func (w *Watcher) settled(now time.Time) []string {
	cutoff := now.Add(-w.settle)
	w.mu.Lock()
	defer w.mu.Unlock()

	var ready []string
	for path, last := range w.pending {
		if !last.After(cutoff) {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}
