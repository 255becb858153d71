// Package history records pack imports and deletions as one JSON file per
// operation, so `wayvibes-ui history` can show what happened and when.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/google/uuid"
)

// Op is the kind of operation recorded.
type Op string

// Recorded operations.
const (
	OpImport       Op = "import"
	OpImportFailed Op = "import_failed"
	OpDelete       Op = "delete"
)

// ErrEntryNotFound is returned by Get for an unknown id.
var ErrEntryNotFound = errors.New("history entry not found")

// Entry is one recorded operation.
type Entry struct {
	ID        string    `json:"id" yaml:"id"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Op        Op        `json:"op" yaml:"op"`
	PackID    string    `json:"pack_id,omitempty" yaml:"pack_id,omitempty"`
	PackName  string    `json:"pack_name,omitempty" yaml:"pack_name,omitempty"`
	Archive   string    `json:"archive,omitempty" yaml:"archive,omitempty"`
	Format    string    `json:"format,omitempty" yaml:"format,omitempty"`
	Error     string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// Log is a directory of history entries.
type Log struct {
	dir string
	mu  sync.Mutex
}

// DefaultDir returns $XDG_DATA_HOME/wayvibes-ui/history.
func DefaultDir() string {
	return filepath.Join(xdg.DataHome, "wayvibes-ui", "history")
}

// New returns a log stored in dir. The directory is created on first write.
func New(dir string) (*Log, error) {
	if dir == "" {
		return nil, errors.New("history directory cannot be empty")
	}
	return &Log{dir: dir}, nil
}

// Dir returns the directory holding the entries.
func (l *Log) Dir() string { return l.dir }

// Record stamps e with an id and time and writes it.
func (l *Log) Record(e Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.Timestamp = time.Now().UTC()
	e.ID = fmt.Sprintf("%s-%s-%s", e.Op, e.Timestamp.Format("20060102T150405"), uuid.NewString()[:8])

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return Entry{}, fmt.Errorf("creating history directory: %w", err)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return Entry{}, fmt.Errorf("encoding history entry: %w", err)
	}

	path := filepath.Join(l.dir, e.ID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Entry{}, fmt.Errorf("writing history entry: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return Entry{}, fmt.Errorf("writing history entry: %w", err)
	}
	return e, nil
}

// List returns entries newest first. A limit of zero or less returns all.
func (l *Log) List(limit int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readAll()
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get returns the entry with the given id.
func (l *Log) Get(id string) (Entry, error) {
	if id == "" || filepath.Base(id) != id || strings.HasPrefix(id, ".") {
		return Entry{}, fmt.Errorf("%w: %q", ErrEntryNotFound, id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, err := readEntry(filepath.Join(l.dir, id+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return e, err
}

// Cleanup removes entries recorded more than retentionDays ago and returns
// how many were removed. A non-positive retention keeps everything.
func (l *Log) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.readAll()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, e := range entries {
		if !e.Timestamp.Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(l.dir, e.ID+".json")); err == nil {
			removed++
		}
	}
	return removed, nil
}

// readAll must be called with l.mu held. Unreadable files are skipped.
func (l *Log) readAll() ([]Entry, error) {
	files, err := os.ReadDir(l.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading history directory: %w", err)
	}

	entries := make([]Entry, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		e, err := readEntry(filepath.Join(l.dir, f.Name()))
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func readEntry(path string) (Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return e, nil
}
