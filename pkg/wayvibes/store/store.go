// Package store manages the permanent pack directory: one subdirectory per
// installed pack, named by its id, each with a manifest at its root. The
// hidden ".importing" subdirectory holds in-progress imports.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/pack"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/trash"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/types"
)

// StagingDirName is the in-progress area under the packs root. Its leading
// dot keeps it out of listings.
const StagingDirName = ".importing"

// Store is the permanent pack directory.
type Store struct {
	root string

	// UseTrash sends deleted packs to the desktop trash instead of removing them.
	UseTrash bool

	// Trash overrides the trash tools; nil uses the platform defaults.
	Trash *trash.Bin
}

// New returns a store rooted at root. Nothing is created until needed.
func New(root string) *Store {
	return &Store{root: filepath.Clean(root)}
}

// Root returns the packs directory.
func (s *Store) Root() string { return s.root }

// StagingArea returns the in-progress directory for imports.
func (s *Store) StagingArea() string { return filepath.Join(s.root, StagingDirName) }

// Path returns the directory for id without checking that it exists.
func (s *Store) Path(id string) (string, error) {
	if err := checkID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.root, id), nil
}

// NewStaging creates a fresh, uniquely named staging directory.
func (s *Store) NewStaging() (string, error) {
	area := s.StagingArea()
	if err := os.MkdirAll(area, 0o755); err != nil {
		return "", packerr.IO("create staging area", err)
	}
	name := fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
	dir := filepath.Join(area, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", packerr.IO("create staging directory", err)
	}
	return dir, nil
}

// List returns every installed pack sorted by case-insensitive name.
// Directories without a root manifest are skipped, as are hidden ones.
// A missing packs directory yields an empty list.
func (s *Store) List() ([]types.SoundPack, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []types.SoundPack{}, nil
	}
	if err != nil {
		return nil, packerr.IO("list packs", err)
	}

	log := logging.Get("store")
	packs := make([]types.SoundPack, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		p, err := s.load(e.Name())
		if err != nil {
			if !errors.Is(err, packerr.ErrNotFound) {
				log.Warn("skipping unreadable pack", "id", e.Name(), "error", err)
			}
			continue
		}
		packs = append(packs, p)
	}

	sort.SliceStable(packs, func(i, j int) bool {
		a, b := strings.ToLower(packs[i].Name), strings.ToLower(packs[j].Name)
		if a != b {
			return a < b
		}
		return packs[i].ID < packs[j].ID
	})
	return packs, nil
}

// Get returns the installed pack id, or ErrNotFound.
func (s *Store) Get(id string) (types.SoundPack, error) {
	if err := checkID(id); err != nil {
		return types.SoundPack{}, err
	}
	return s.load(id)
}

// Exists reports whether a directory for id is present, manifest or not.
func (s *Store) Exists(id string) bool {
	dir, err := s.Path(id)
	if err != nil {
		return false
	}
	_, err = os.Lstat(dir)
	return err == nil
}

func (s *Store) load(id string) (types.SoundPack, error) {
	path := filepath.Join(s.root, id, pack.ManifestName)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return types.SoundPack{}, packerr.New(packerr.ErrNotFound, "get", "pack %q not found", id)
	}

	m, err := pack.ReadManifest(path)
	if err != nil {
		return types.SoundPack{}, err
	}
	p := m.Resolve(id)
	p.ID = id
	return p, nil
}

// Delete removes pack id. A missing directory is ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	dir, err := s.Path(id)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return packerr.New(packerr.ErrNotFound, "delete", "pack %q not found", id)
		}
		return packerr.IO("delete "+id, err)
	}

	if s.UseTrash {
		bin := trash.Bin{Tools: trash.DefaultTools()}
		if s.Trash != nil {
			bin = *s.Trash
		}
		method, err := bin.Move(ctx, dir)
		if err != nil {
			return packerr.IO("delete "+id, err)
		}
		logging.Get("store").Info("pack deleted", "id", id, "method", method)
		return nil
	}

	if err := os.RemoveAll(dir); err != nil {
		return packerr.IO("delete "+id, err)
	}
	logging.Get("store").Info("pack deleted", "id", id)
	return nil
}

// Commit moves a finished staging directory into place as pack id. An
// existing pack with the same id is never touched; the loser of a race gets
// ErrInvalidPack. New packs only ever get slug ids, even though Get and
// Delete accept any visible directory name.
func (s *Store) Commit(staging, id string) (string, error) {
	if !pack.ValidID(id) {
		return "", packerr.InvalidPack("commit", "invalid pack id %q", id)
	}
	dest, err := s.Path(id)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return "", packerr.IO("commit", err)
	}

	if err := renameNoReplace(staging, dest); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return "", collision(id)
		}
		return "", packerr.IO("commit "+id, err)
	}
	return dest, nil
}

// checkID accepts a single, visible path segment.
func checkID(id string) error {
	switch {
	case id == "", id == ".", id == "..":
	case strings.ContainsAny(id, `/\`), strings.ContainsRune(id, 0):
	case strings.HasPrefix(id, "."):
	case filepath.Base(id) != id:
	default:
		return nil
	}
	return packerr.InvalidPack("pack id", "invalid pack id %q", id)
}

func collision(id string) error {
	return packerr.InvalidPack("commit", "a sound pack named %q already exists", id)
}
