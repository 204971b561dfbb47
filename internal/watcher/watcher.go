// Package watcher monitors the settings file for changes.
package watcher

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// debounceWindow coalesces the burst of events editors produce when saving.
const debounceWindow = 500 * time.Millisecond

// SettingsWatcher watches the settings file and invokes a callback once per
// save. The watch is on the parent directory because editors typically
// replace the file via rename, which would drop a watch on the file itself.
type SettingsWatcher struct {
	path     string
	onChange func()
	log      zerolog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New creates a watcher for the given settings file path.
func New(path string, onChange func(), log zerolog.Logger) *SettingsWatcher {
	return &SettingsWatcher{
		path:     path,
		onChange: onChange,
		log:      log.With().Str("component", "watcher").Logger(),
	}
}

// Start begins watching. No-op if the settings directory does not exist.
func (w *SettingsWatcher) Start() error {
	dir := filepath.Dir(w.path)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	go w.loop(watcher, w.done)

	w.log.Info().Str("path", w.path).Msg("Watching settings file")
	return nil
}

func (w *SettingsWatcher) loop(watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerC = timer.C
			} else {
				timer.Reset(debounceWindow)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.log.Info().Msg("Settings file changed")
			if w.onChange != nil {
				w.onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("Settings watcher error")
		}
	}
}

// Stop stops watching and waits for the event loop to exit.
func (w *SettingsWatcher) Stop() {
	w.mu.Lock()
	watcher := w.watcher
	done := w.done
	w.watcher = nil
	w.done = nil
	w.mu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
		<-done
	}
}
