package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Watcher observes the configuration file for edits. Component configuration
// is immutable once constructed, so a reload only reapplies the log level and
// otherwise logs a restart-required notice.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	stop    chan struct{}
	onInfo  func(*Config)
}

// NewWatcher creates a watcher for the given config file. onReload receives
// the freshly loaded and sanitized configuration.
func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory so editor rename-and-replace saves are still seen.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{
		path:    path,
		watcher: fsw,
		stop:    make(chan struct{}),
		onInfo:  onReload,
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case <-w.stop:
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(w.path) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				// Give the editor time to finish the write.
				time.Sleep(100 * time.Millisecond)

				cfg, err := Load(w.path)
				if err != nil {
					log.Warnf("Config file changed but reload failed: %v", err)
					continue
				}

				log.Infof("Config file changed (%s); log level applied, other changes need a restart", event.Name)
				if w.onInfo != nil {
					w.onInfo(cfg)
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("Config watcher error: %v", err)
			}
		}
	}()
}

// Stop terminates the watcher.
func (w *Watcher) Stop() {
	close(w.stop)
	_ = w.watcher.Close()
}
