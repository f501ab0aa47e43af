package sync

import (
	"context"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"neuroflow/internal/cache"
	"neuroflow/internal/logging"
)

// CacheWatcher watches the cache directory for entry-file writes and
// triggers reconciliation once the burst of offline edits settles. It is
// the reconnect-side counterpart of the cache's debounced persistence.
type CacheWatcher struct {
	mu        gosync.Mutex
	watcher   *fsnotify.Watcher
	dir       string
	onSettle  func()
	debounce  time.Duration
	lastEvent time.Time
	pending   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	running   bool
}

// NewCacheWatcher creates a watcher over the cache directory. onSettle is
// invoked after writes have been quiet for the debounce window; a typical
// callback runs ReconcilePending on its own context.
func NewCacheWatcher(dir string, debounce time.Duration, onSettle func()) (*CacheWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &CacheWatcher{
		watcher:  watcher,
		dir:      dir,
		onSettle: onSettle,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; the event loop runs in a goroutine.
func (w *CacheWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		logging.Get(logging.CategorySync).Warn("watcher: failed to create cache dir %s: %v", w.dir, err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		logging.Get(logging.CategorySync).Warn("watcher: initial watch of %s failed: %v", w.dir, err)
	} else {
		logging.Sync("watching cache directory: %s", w.dir)
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to drain.
func (w *CacheWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		logging.Get(logging.CategorySync).Error("watcher: close failed: %v", err)
	}
	logging.Sync("cache watcher stopped")
}

func (w *CacheWatcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.SyncDebug("watcher: context cancelled")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != cache.EntriesFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.lastEvent = time.Now()
			w.pending = true
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategorySync).Error("watcher: %v", err)

		case <-ticker.C:
			w.mu.Lock()
			fire := w.pending && time.Since(w.lastEvent) >= w.debounce
			if fire {
				w.pending = false
			}
			w.mu.Unlock()
			if fire && w.onSettle != nil {
				w.onSettle()
			}
		}
	}
}
