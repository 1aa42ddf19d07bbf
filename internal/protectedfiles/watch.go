package protectedfiles

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/mfateev/approvalgate/internal/gatelog"
)

// Watcher proactively enriches a Cache when a protected-looking file is
// created in a watched directory, so a file written mid-session is caught
// even before the next force_refresh (SPEC_FULL.md §4.12's supplement over
// spec.md's interval/force_refresh-only lifecycle). It is additive only:
// the interval and force_refresh paths remain the source of truth spec.md
// mandates, and this watcher is never solely relied upon.
type Watcher struct {
	cache   *Cache
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchDirs starts watching dirs for create/rename events and force-refreshes
// cache whenever a new candidate basename appears. Callers must call Close
// when done.
func WatchDirs(cache *Cache, dirs []string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		if err := fw.Add(d); err != nil {
			gatelog.Debug("protectedfiles: watch add failed", map[string]any{"dir": d, "err": err.Error()})
		}
	}

	w := &Watcher{cache: cache, watcher: fw, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if matchesBasename(normalizeBasename(filepath.Base(ev.Name))) {
				gatelog.Debug("protectedfiles: watch triggered refresh", map[string]any{"path": ev.Name})
				w.cache.ForceRefresh()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher goroutine and releases its OS resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
