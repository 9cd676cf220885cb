package session

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ontomcp/pkg/logging"
)

// watchDebounce coalesces bursts of filesystem events. Editors and the
// atomic temp+rename save produce several events per logical change.
const watchDebounce = 250 * time.Millisecond

// Watcher reloads the manager's session when the persisted token file is
// rewritten by another process, e.g. an `onto-mcp auth login` run while the
// server is serving. It watches the storage directory rather than the file
// itself because the atomic rename replaces the inode on every save.
type Watcher struct {
	mu sync.Mutex

	manager   *Manager
	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool
}

// NewWatcher creates a watcher for the manager's token file.
func NewWatcher(manager *Manager) *Watcher {
	return &Watcher{manager: manager}
}

// Start begins watching. Failure to set up fsnotify is logged and the
// watcher stays inert; external logins then require a server restart,
// which is degraded but not broken.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("SessionWatcher", "fsnotify unavailable, external logins will not be detected: %v", err)
		return nil
	}

	dir := filepath.Dir(w.manager.StorePath())
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		logging.Warn("SessionWatcher", "Cannot watch %s, external logins will not be detected: %v", dir, err)
		return nil
	}

	w.fsWatcher = fsWatcher
	w.stopCh = make(chan struct{})
	w.running = true

	go w.watchLoop()

	logging.Debug("SessionWatcher", "Watching %s for external session changes", dir)
	return nil
}

// Stop stops the watcher. Safe to call multiple times.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	close(w.stopCh)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
		w.fsWatcher = nil
	}
	w.running = false
}

func (w *Watcher) watchLoop() {
	tokenPath := w.manager.StorePath()

	var debounce *time.Timer
	var debounceCh <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != tokenPath {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(watchDebounce)
			} else {
				debounce.Reset(watchDebounce)
			}
			debounceCh = debounce.C

		case <-debounceCh:
			debounceCh = nil
			logging.Debug("SessionWatcher", "Token file changed on disk, reloading session")
			w.manager.Reload()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			logging.Warn("SessionWatcher", "Watch error: %v", err)
		}
	}
}
