// Package watcher reloads artifacts when their files change on disk, using
// fsnotify with per-file debouncing.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/indexctx"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches directories and invokes a callback once a matching file
// has stopped changing.
type Watcher struct {
	dirs     []string
	match    func(path string) bool
	onChange func(path string)
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	pending  map[string]*time.Timer
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a file must be quiet before onChange fires.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over dirs. match selects the files of interest
// (nil matches everything); onChange receives each changed file.
func NewWatcher(dirs []string, match func(path string) bool, onChange func(path string), opts ...Option) *Watcher {
	w := &Watcher{
		match:    match,
		onChange: onChange,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		pending:  make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	seen := make(map[string]bool)
	for _, d := range dirs {
		d = filepath.Clean(d)
		if d == "." || seen[d] {
			continue
		}
		seen[d] = true
		w.dirs = append(w.dirs, d)
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Reloadable is what ForIndex needs from an index context.
type Reloadable interface {
	ArtifactFor(path string) (indexctx.Artifact, bool)
	Invalidate(a indexctx.Artifact)
	WatchDirs() []string
}

// ForIndex returns a watcher that invalidates the artifact owning each
// changed file so the next query reloads it.
func ForIndex(x Reloadable, opts ...Option) *Watcher {
	match := func(path string) bool {
		_, ok := x.ArtifactFor(path)
		return ok
	}
	onChange := func(path string) {
		if a, ok := x.ArtifactFor(path); ok {
			x.Invalidate(a)
		}
	}
	return NewWatcher(x.WatchDirs(), match, onChange, opts...)
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
// Missing directories are created.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range w.dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			_ = fsw.Close()
			return err
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return err
		}
	}
	w.watcher = fsw
	w.started = true
	w.logger.Debug("watcher starting", zap.Strings("dirs", w.dirs), zap.Duration("debounce", w.debounce))
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	path := filepath.Clean(ev.Name)
	if w.match != nil && !w.match(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	w.schedule(path)
}

// schedule fires onChange for path once no event has arrived for the debounce window.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.logger.Info("artifact changed on disk", zap.String("path", path))
		if w.onChange != nil {
			w.onChange(path)
		}
	})
}

// Directories returns a copy of the watched directories.
func (w *Watcher) Directories() []string {
	return append([]string(nil), w.dirs...)
}

// Stop stops the watcher and releases resources. Pending callbacks are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
