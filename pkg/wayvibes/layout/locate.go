// Package layout finds the manifest inside an extracted archive and flattens
// wrapper directories so the manifest ends up at the pack root.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/pack"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

// ErrManifestNotFound is returned when no manifest exists anywhere under the
// extraction root. It is an ErrInvalidPack.
var ErrManifestNotFound = fmt.Errorf("%w: %s not found in archive", packerr.ErrInvalidPack, pack.ManifestName)

// Descriptor records where the manifest was found.
type Descriptor struct {
	// Path is the manifest file.
	Path string

	// Dir is the directory holding the manifest.
	Dir string

	// Nested is true when Dir was not the extraction root. Normalize keeps it
	// set so callers can tell that flattening happened.
	Nested bool
}

// Locate finds the manifest under root. A manifest at the root wins outright;
// otherwise the shallowest one is chosen, ties going to the lexically first
// slash path.
func Locate(root string) (Descriptor, error) {
	direct := filepath.Join(root, pack.ManifestName)
	if info, err := os.Lstat(direct); err == nil && info.Mode().IsRegular() {
		return Descriptor{Path: direct, Dir: root}, nil
	}

	candidates, err := findManifests(root)
	if err != nil {
		return Descriptor{}, err
	}
	if len(candidates) == 0 {
		return Descriptor{}, ErrManifestNotFound
	}

	sort.Slice(candidates, func(i, j int) bool {
		di, dj := strings.Count(candidates[i], "/"), strings.Count(candidates[j], "/")
		if di != dj {
			return di < dj
		}
		return candidates[i] < candidates[j]
	})

	if len(candidates) > 1 {
		logging.Get("layout").Debug("multiple manifests found", "chosen", candidates[0], "count", len(candidates))
	}

	path := filepath.Join(root, filepath.FromSlash(candidates[0]))
	return Descriptor{Path: path, Dir: filepath.Dir(path), Nested: true}, nil
}

// findManifests returns slash paths, relative to root, of every regular file
// named like the manifest below the root. Symlinks are not followed.
func findManifests(root string) ([]string, error) {
	var (
		mu    sync.Mutex
		found []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Name() != pack.ManifestName || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.Contains(rel, "/") {
			return nil
		}

		mu.Lock()
		found = append(found, rel)
		mu.Unlock()
		return nil
	})
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return nil, packerr.IO("search for "+pack.ManifestName, err)
	}
	return found, nil
}
