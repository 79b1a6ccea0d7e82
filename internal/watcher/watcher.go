// Package watcher watches the configuration file and triggers hot reloads.
// It supports cross-platform fsnotify event handling.
package watcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"github.com/router-for-me/PayPalProxyAPI/internal/config"
)

// configReloadDebounce coalesces the event bursts editors and atomic
// renames produce into a single reload.
const configReloadDebounce = 150 * time.Millisecond

// Watcher manages file watching for the configuration file.
type Watcher struct {
	configPath     string
	reloadCallback func(*config.Config)
	watcher        *fsnotify.Watcher

	mu                sync.Mutex
	configReloadTimer *time.Timer
	lastConfigHash    string
}

// NewWatcher creates a new file watcher instance. The callback receives each
// successfully reloaded configuration.
func NewWatcher(configPath string, reloadCallback func(*config.Config)) (*Watcher, error) {
	fsWatcher, errNewWatcher := fsnotify.NewWatcher()
	if errNewWatcher != nil {
		return nil, errNewWatcher
	}
	w := &Watcher{
		configPath:     configPath,
		reloadCallback: reloadCallback,
		watcher:        fsWatcher,
	}
	if data, err := os.ReadFile(configPath); err == nil {
		w.lastConfigHash = hashBytes(data)
	}
	return w, nil
}

// Start begins watching the configuration file until the context is
// cancelled. The parent directory is watched too so atomic replaces
// (write to temp file, rename over) are observed.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	// Watching the file directly keeps events flowing for in-place edits.
	if err := w.watcher.Add(w.configPath); err != nil {
		log.Debugf("could not watch config file directly (will rely on directory events): %v", err)
	}

	log.Infof("watching config file for changes: %s", w.configPath)
	go w.run(ctx)
	return nil
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	w.stopConfigReloadTimer()
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.isConfigEvent(event) {
				continue
			}
			w.scheduleConfigReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Errorf("config watcher error: %v", err)
		}
	}
}

// isConfigEvent reports whether an fsnotify event concerns the watched
// configuration file.
func (w *Watcher) isConfigEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.configPath) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0
}

func (w *Watcher) stopConfigReloadTimer() {
	w.mu.Lock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
		w.configReloadTimer = nil
	}
	w.mu.Unlock()
}

func (w *Watcher) scheduleConfigReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.configReloadTimer != nil {
		w.configReloadTimer.Stop()
	}
	w.configReloadTimer = time.AfterFunc(configReloadDebounce, func() {
		w.mu.Lock()
		w.configReloadTimer = nil
		w.mu.Unlock()
		w.reloadConfigIfChanged()
	})
}

func (w *Watcher) reloadConfigIfChanged() {
	data, err := os.ReadFile(w.configPath)
	if err != nil {
		log.Errorf("failed to read config file for hash check: %v", err)
		return
	}
	if len(data) == 0 {
		log.Debugf("ignoring empty config file write event")
		return
	}
	newHash := hashBytes(data)

	w.mu.Lock()
	currentHash := w.lastConfigHash
	w.mu.Unlock()

	if currentHash != "" && currentHash == newHash {
		log.Debugf("config file content unchanged (hash match), skipping reload")
		return
	}

	log.Infof("config file changed, reloading: %s", w.configPath)
	newConfig, errLoad := config.LoadConfig(w.configPath)
	if errLoad != nil {
		log.Errorf("failed to reload config, keeping previous configuration: %v", errLoad)
		return
	}

	w.mu.Lock()
	w.lastConfigHash = newHash
	w.mu.Unlock()

	if w.reloadCallback != nil {
		w.reloadCallback(newConfig)
	}
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
