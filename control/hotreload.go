// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// File watcher that reloads the TOML configuration on write and pushes the
// result into a ConfigStore.

package control

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce lets editors finish writing before the file is parsed.
const reloadDebounce = 100 * time.Millisecond

// Watcher follows one configuration file.
type Watcher struct {
	path    string
	store   *ConfigStore
	watcher *fsnotify.Watcher
	log     *log.Logger
}

// NewWatcher starts watching path. The parent directory is watched so that
// editors replacing the file by rename are seen too.
func NewWatcher(path string, store *ConfigStore, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}
	return &Watcher{path: abs, store: store, watcher: fw, log: logger}, nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			time.Sleep(reloadDebounce)
			w.Reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Printf("[control] watcher error: %v", err)
		}
	}
}

// Reload reads the file once and installs it. Invalid files are logged and
// the previous configuration stays in effect.
func (w *Watcher) Reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		w.log.Printf("[control] reload of %s rejected: %v", w.path, err)
		return
	}
	if err := w.store.SetConfig(cfg); err != nil {
		w.log.Printf("[control] reload of %s rejected: %v", w.path, err)
		return
	}
	w.log.Printf("[control] reloaded %s", w.path)
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
