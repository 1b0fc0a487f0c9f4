package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Invalidator drops a cached value.
type Invalidator interface {
	Invalidate()
}

const defaultDebounce = 250 * time.Millisecond

// Watcher invalidates caches when any watched configuration file changes.
// Parent directories are watched so editors that replace files by rename are
// still observed.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	targets  []Invalidator
	debounce time.Duration
	logger   *zap.Logger
	onChange func()
}

// NewWatcher watches paths and invalidates targets after a change settles.
func NewWatcher(paths []string, targets []Invalidator, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool, len(paths)),
		targets:  targets,
		debounce: defaultDebounce,
		logger:   logger.Named("watch"),
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// OnChange registers a callback run after targets are invalidated.
func (w *Watcher) OnChange(fn func()) {
	w.onChange = fn
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("configuration file changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)
			fire = time.After(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-fire:
			fire = nil
			for _, t := range w.targets {
				t.Invalidate()
			}
			if w.onChange != nil {
				w.onChange()
			}
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	abs, err := filepath.Abs(event.Name)
	if err != nil || !w.files[abs] {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove)
}
