package layout

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/pack"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

// FlattenMarker appears in the names of temporary directories created by
// Normalize, so leftovers from a crash can be recognized.
const FlattenMarker = ".flatten-"

// Normalize moves the contents of a nested manifest directory up to root and
// discards everything else under root, including the wrapper directories.
// The swap goes through a temporary sibling of root so the manifest directory
// is never moved into its own ancestor.
func Normalize(root string, d Descriptor) (Descriptor, error) {
	if !d.Nested {
		return d, nil
	}

	log := logging.Get("layout")
	tmp := root + FlattenMarker + uuid.NewString()
	if err := os.Mkdir(tmp, 0o755); err != nil {
		return d, packerr.IO("normalize", err)
	}

	if err := swap(root, d.Dir, tmp); err != nil {
		if rmErr := os.RemoveAll(tmp); rmErr != nil {
			log.Warn("failed to remove flatten directory", "path", tmp, "error", rmErr)
		}
		return d, err
	}

	log.Debug("flattened nested pack", "from", d.Dir, "root", root)
	return Descriptor{
		Path:   filepath.Join(root, pack.ManifestName),
		Dir:    root,
		Nested: true,
	}, nil
}

func swap(root, dir, tmp string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return packerr.IO("normalize: read "+dir, err)
	}
	for _, e := range entries {
		if err := os.Rename(filepath.Join(dir, e.Name()), filepath.Join(tmp, e.Name())); err != nil {
			return packerr.IO("normalize: move "+e.Name(), err)
		}
	}
	if err := os.RemoveAll(root); err != nil {
		return packerr.IO("normalize: clear root", err)
	}
	if err := os.Rename(tmp, root); err != nil {
		return packerr.IO("normalize: replace root", err)
	}
	return nil
}
