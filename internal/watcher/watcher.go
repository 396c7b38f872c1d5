// Package watcher watches the uploaded-documents tree and marks the compiled
// index stale when files change. Changes within the debounce window coalesce
// into a single notification, so a bulk upload triggers one recompile, not one
// per file.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 2 * time.Second

// Watcher watches a documents root and reports when its contents change.
type Watcher struct {
	root     string
	debounce time.Duration
	onChange func()

	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	stale    bool
	started  bool
	done     chan struct{}
	stopOnce sync.Once
	logger   *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher over root. onChange fires once per settled burst of
// changes; it may be nil when only staleness tracking is wanted.
func New(root string, onChange func(), opts ...Option) *Watcher {
	w := &Watcher{
		root:     filepath.Clean(root),
		debounce: defaultDebounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	if w.logger != nil {
		w.logger.Debug("watcher starting", zap.String("root", w.root))
	}
	if err := w.addTreeLocked(w.root); err != nil {
		_ = w.watcher.Close()
		w.watcher = nil
		w.started = false
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

// isRelevant filters out internal JSON state files and the snapshot; those
// are written by the application itself and must not retrigger a compile.
func isRelevant(path string) bool {
	return !strings.HasSuffix(strings.ToLower(path), ".json")
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	if w.logger != nil {
		w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	}
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.mu.Lock()
			if w.watcher != nil {
				_ = w.addTreeLocked(path)
			}
			w.mu.Unlock()
			w.markChanged()
			return
		}
	}
	if !isRelevant(path) {
		return
	}
	if ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) ||
		ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		w.markChanged()
	}
}

// markChanged flags the index stale and (re)arms the coalescing timer.
func (w *Watcher) markChanged() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stale = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.timer = nil
		onChange := w.onChange
		logger := w.logger
		w.mu.Unlock()
		if logger != nil {
			logger.Debug("watcher change settled", zap.String("root", w.root))
		}
		if onChange != nil {
			onChange()
		}
	})
}

// addTreeLocked registers root and all its subdirectories, creating root if
// it does not exist yet.
func (w *Watcher) addTreeLocked(root string) error {
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

// Stale reports whether files changed since the last MarkCompiled.
func (w *Watcher) Stale() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stale
}

// MarkCompiled clears the stale flag. Call after a successful recompile.
func (w *Watcher) MarkCompiled() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stale = false
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
