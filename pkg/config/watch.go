package config

import (
	"path/filepath"
	"time"

	"github.com/core-tools/hsu-game-master/pkg/errors"
	"github.com/core-tools/hsu-game-master/pkg/logging"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

const watchDebounce = time.Second

// Watcher notices edits to the configuration file. Configuration is loaded once,
// so a change is only reported; applying it requires restarting the manager.
type Watcher struct {
	filename string
	watcher  *fsnotify.Watcher
	logger   logging.Logger
}

// NewWatcher registers the directory of filename. Watching the directory rather
// than the file survives editors that replace the file on save.
func NewWatcher(filename string, logger logging.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewIOError("failed to create configuration watcher", err)
	}

	dir := filepath.Dir(filename)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, errors.NewIOError("failed to watch configuration directory", err).WithContext("directory", dir)
	}

	return &Watcher{
		filename: filename,
		watcher:  watcher,
		logger:   logger,
	}, nil
}

// Run delivers change notifications until the stopper context begins stopping
func (w *Watcher) Run(ctx *stopper.Context, onChange func()) error {
	defer w.watcher.Close()

	base := filepath.Base(w.filename)
	var last time.Time

	for {
		select {
		case <-ctx.Stopping():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if time.Since(last) < watchDebounce {
				continue
			}
			last = time.Now()
			w.logger.Debugf("Configuration file event: %s", event)
			onChange()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnf("Configuration watcher error: %v", err)
		}
	}
}
