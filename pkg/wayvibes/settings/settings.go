// Package settings persists the user's playback choices: the active pack,
// the volume and whether playback is paused. Every read-modify-write holds
// both an in-process mutex and a lock file, so the CLI and a running shell
// never lose each other's updates.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/gofrs/flock"
)

// FileName is the settings file name inside the config directory.
const FileName = "settings.json"

// DefaultVolume is the volume of a fresh install.
const DefaultVolume = 0.7

// Settings is the persisted state.
type Settings struct {
	ActivePackID *string `json:"activePackId"`
	Volume       float64 `json:"volume"`
	Paused       bool    `json:"paused"`
}

// Defaults returns the settings of a fresh install.
func Defaults() Settings {
	return Settings{Volume: DefaultVolume}
}

// Active returns the active pack id, or "" when none is set.
func (s Settings) Active() string {
	if s.ActivePackID == nil {
		return ""
	}
	return *s.ActivePackID
}

// clone deep-copies s so callers never share the pointer field.
func (s Settings) clone() Settings {
	if s.ActivePackID != nil {
		id := *s.ActivePackID
		s.ActivePackID = &id
	}
	return s
}

// DefaultPath returns $XDG_CONFIG_HOME/wayvibes-ui/settings.json.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "wayvibes-ui", FileName)
}

// File is an open settings file.
type File struct {
	path string
	lock *flock.Flock

	mu      sync.Mutex
	current Settings
}

// Open loads the settings at path, creating the file with defaults when it
// does not exist. A file that is not valid JSON is an error and is left
// untouched.
func Open(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create settings directory: %w", err)
	}

	f := &File{path: path, lock: flock.New(path + ".lock")}
	if err := f.lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock settings: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	s, err := f.read()
	if errors.Is(err, os.ErrNotExist) {
		s = Defaults()
		err = f.write(s)
	}
	if err != nil {
		return nil, err
	}
	f.current = s
	return f, nil
}

// Path returns the settings file path.
func (f *File) Path() string { return f.path }

// Get returns a copy of the last loaded or written settings.
func (f *File) Get() Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current.clone()
}

// Update re-reads the file, applies fn and writes the result atomically.
// When fn returns an error nothing is written.
func (f *File) Update(fn func(*Settings) error) (Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock.Lock(); err != nil {
		return Settings{}, fmt.Errorf("lock settings: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	s, err := f.read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		s = Defaults()
	case err != nil:
		return Settings{}, err
	}

	if err := fn(&s); err != nil {
		return Settings{}, err
	}
	if err := f.write(s); err != nil {
		return Settings{}, err
	}
	f.current = s
	return s.clone(), nil
}

// Reload refreshes the cached copy from disk.
func (f *File) Reload() (Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock.RLock(); err != nil {
		return Settings{}, fmt.Errorf("lock settings: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	s, err := f.read()
	if err != nil {
		return Settings{}, err
	}
	f.current = s
	return s.clone(), nil
}

func (f *File) read() (Settings, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}
	s := Defaults()
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parse settings %s: %w", f.path, err)
	}
	return s, nil
}

func (f *File) write(s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename settings: %w", err)
	}
	return nil
}
