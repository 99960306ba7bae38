// Package watcher observes a filesystem content store directory and
// invalidates cache entries whose image files disappear out of band.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/dreamcache/internal/artifact"
)

// Watcher watches an artifact directory and reports removed artifacts.
type Watcher struct {
	dir      string
	onRemove func(ctx context.Context, id string)
	watcher  *fsnotify.Watcher
	mu       sync.Mutex
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher over dir. onRemove is called with the artifact
// ID whenever a stored image file is deleted.
func NewWatcher(dir string, onRemove func(ctx context.Context, id string), opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		onRemove: onRemove,
		done:     make(chan struct{}),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts the watcher. It runs until ctx is cancelled or Stop is called.
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
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	w.logger.Debug("watcher starting", zap.String("dir", w.dir))
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
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}
	name := filepath.Base(ev.Name)
	if !strings.HasSuffix(name, ".png") {
		return
	}
	id := artifact.IDFromFilename(name)
	if id == "" {
		return
	}
	w.logger.Info("stored image removed, invalidating",
		zap.String("id", id),
		zap.String("path", ev.Name))
	if w.onRemove != nil {
		w.onRemove(ctx, id)
	}
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		if w.watcher != nil {
			_ = w.watcher.Close()
		}
		w.mu.Unlock()
	})
}
