// Package settings reads the user-facing toggles from the config file and
// follows edits to it.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Settings are the live-reloadable toggles.
type Settings struct {
	SoundEnabled bool
}

// Defaults returns the settings used when the file says nothing.
func Defaults() Settings {
	return Settings{SoundEnabled: true}
}

type fileLayout struct {
	Sound struct {
		Enabled *bool `yaml:"enabled"`
	} `yaml:"sound"`
}

// Read parses the toggles from a YAML config file. A missing file yields
// the defaults.
func Read(path string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, err
	}

	var f fileLayout
	if err := yaml.Unmarshal(data, &f); err != nil {
		return s, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if f.Sound.Enabled != nil {
		s.SoundEnabled = *f.Sound.Enabled
	}
	return s, nil
}

// Watcher re-reads the config file whenever it is written.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	logger  *log.Logger

	mu      sync.Mutex
	current Settings
}

// NewWatcher reads path and starts watching its directory. Editors often
// replace files by rename, so the directory is watched rather than the file.
func NewWatcher(path string, logger *log.Logger) (*Watcher, error) {
	if logger == nil {
		logger = log.Default().WithPrefix("settings")
	}
	path = filepath.Clean(path)

	current, err := Read(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("error creating fsnotify watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("error adding dir to fsnotify watcher: %w", err)
	}
	logger.Debug("Watching config", "file", path)

	return &Watcher{path: path, watcher: fw, logger: logger, current: current}, nil
}

// Current returns the last settings read.
func (w *Watcher) Current() Settings {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Run delivers changed settings to onChange until ctx is done or the
// watcher is closed. Unparseable edits are logged and ignored.
func (w *Watcher) Run(ctx context.Context, onChange func(Settings)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("fsnotify event", "file", event.Name, "event", event.Op)

			s, err := Read(w.path)
			if err != nil {
				w.logger.Warn("Ignoring config edit", "error", err)
				continue
			}

			w.mu.Lock()
			changed := s != w.current
			w.current = s
			w.mu.Unlock()

			if changed {
				w.logger.Info("Settings changed", "sound", s.SoundEnabled)
				onChange(s)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Debug("fsnotify error", "file", w.path, "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
