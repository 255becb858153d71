package importer

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/layout"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
)

// DefaultStaleAge is how old a leftover staging directory must be before
// CleanStale removes it.
const DefaultStaleAge = 24 * time.Hour

// lockSuffix names the sibling file an import holds an flock on for as long
// as it owns a staging directory.
const lockSuffix = ".lock"

// CleanStaleResult contains the outcome of a stale directory cleanup.
type CleanStaleResult struct {
	Removed []string
	InUse   []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// StagingDir describes one directory left in the staging area.
type StagingDir struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"mod_time"`
	Flatten bool      `json:"flatten"`
}

func stagingLock(dir string) *flock.Flock {
	return flock.New(dir + lockSuffix)
}

// stagingOwner maps a staging, flatten, or lock entry name to the staging
// directory it belongs to.
func stagingOwner(name string) string {
	name = strings.TrimSuffix(name, lockSuffix)
	if i := strings.Index(name, layout.FlattenMarker); i >= 0 {
		return name[:i]
	}
	return name
}

// CleanStale removes staging and flatten directories older than maxAge.
// Those are left behind only when a process dies mid-import. Directories
// whose import still holds the staging lock are reported in InUse and kept,
// however old they are.
func (im *Importer) CleanStale(ctx context.Context, maxAge time.Duration) CleanStaleResult {
	result := CleanStaleResult{}
	area := im.Store.StagingArea()

	entries, err := os.ReadDir(area)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: area, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, CleanupError{Path: area, Error: ctx.Err()})
			return result
		}

		path := filepath.Join(area, entry.Name())
		info, err := entry.Info()
		if err != nil {
			if !os.IsNotExist(err) {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		switch {
		case entry.IsDir():
			removeStale(area, entry.Name(), info.ModTime(), &result)
		case strings.HasSuffix(entry.Name(), lockSuffix):
			removeOrphanLock(area, entry.Name())
		}
	}
	return result
}

// removeStale deletes one staging or flatten directory unless its owner is
// still locked.
func removeStale(area, name string, modTime time.Time, result *CleanStaleResult) {
	log := logging.Get("importer")
	path := filepath.Join(area, name)
	owner := filepath.Join(area, stagingOwner(name))

	lock := stagingLock(owner)
	locked, err := lock.TryLock()
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
		return
	}
	if !locked {
		result.InUse = append(result.InUse, path)
		log.Info("staging directory still in use", "path", path)
		return
	}
	defer func() { _ = lock.Unlock() }()

	if err := os.RemoveAll(path); err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
		log.Warn("failed to remove stale staging directory", "path", path, "error", err)
		return
	}
	result.Removed = append(result.Removed, path)
	log.Info("removed stale staging directory", "path", path, "age", time.Since(modTime).Round(time.Second))

	if _, err := os.Lstat(owner); errors.Is(err, fs.ErrNotExist) {
		_ = os.Remove(lock.Path())
	}
}

// removeOrphanLock deletes a lock file left behind by a crashed import once
// nothing holds it and its staging directory is gone.
func removeOrphanLock(area, name string) {
	owner := filepath.Join(area, stagingOwner(name))
	if _, err := os.Lstat(owner); !errors.Is(err, fs.ErrNotExist) {
		return
	}
	lock := flock.New(filepath.Join(area, name))
	if locked, err := lock.TryLock(); err != nil || !locked {
		return
	}
	_ = os.Remove(lock.Path())
	_ = lock.Unlock()
}

// ListStaging returns the directories currently in the staging area,
// oldest first.
func (im *Importer) ListStaging() ([]StagingDir, error) {
	area := im.Store.StagingArea()
	entries, err := os.ReadDir(area)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []StagingDir
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, StagingDir{
			Name:    entry.Name(),
			Path:    filepath.Join(area, entry.Name()),
			ModTime: info.ModTime(),
			Flatten: strings.Contains(entry.Name(), layout.FlattenMarker),
		})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].ModTime.Before(dirs[j].ModTime) })
	return dirs, nil
}
