// Package importer turns an archive file into an installed sound pack. Each
// import extracts into a private staging directory, fixes up the layout,
// has the pack validated, and only then renames it into the pack store. A
// failure at any point removes the staging directory, so a pack is either
// fully installed or not present at all.
package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/archive"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/catalog"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/history"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/layout"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/pack"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/store"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/types"
)

// Validator confirms that a staged pack is usable.
type Validator interface {
	CheckInstalled() (string, error)
	Validate(ctx context.Context, dir string, normalized bool) error
}

// Importer runs imports into Store.
type Importer struct {
	Store     *store.Store
	Validator Validator

	// Archive tunes extraction (size budget, skip patterns).
	Archive archive.Options

	// Catalog and History are optional and written best effort.
	Catalog *catalog.Catalog
	History *history.Log

	// OnState, when set, is called on every state transition.
	OnState func(State)
}

// Result is delivered by ImportAsync.
type Result struct {
	Pack types.SoundPack
	Err  error
}

// run tracks one import attempt.
type run struct {
	im      *Importer
	archive string
	format  archive.Format
	staging string
	lock    *flock.Flock
	state   State
}

// Import installs the archive at path and returns the new pack.
func (im *Importer) Import(ctx context.Context, path string) (types.SoundPack, error) {
	r := &run{im: im, archive: path}
	defer r.unlock()
	p, err := r.execute(ctx)
	if err != nil {
		r.rollback(err)
		im.record(history.Entry{Op: history.OpImportFailed, Archive: path, Format: r.formatName(), Error: err.Error()})
		return types.SoundPack{}, err
	}
	return p, nil
}

// ImportAsync runs Import on its own goroutine. The channel receives exactly
// one Result and is then closed.
func (im *Importer) ImportAsync(ctx context.Context, path string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		p, err := im.Import(ctx, path)
		ch <- Result{Pack: p, Err: err}
	}()
	return ch
}

func (r *run) execute(ctx context.Context) (types.SoundPack, error) {
	im := r.im
	log := logging.Get("importer")

	r.enter(StateIdle)
	if _, err := im.Validator.CheckInstalled(); err != nil {
		return types.SoundPack{}, err
	}

	r.enter(StateDetecting)
	format, err := archive.DetectFormat(r.archive)
	if err != nil {
		return types.SoundPack{}, err
	}
	r.format = format
	if info, err := os.Stat(r.archive); err != nil {
		return types.SoundPack{}, packerr.IO("open archive", err)
	} else if info.IsDir() {
		return types.SoundPack{}, packerr.New(packerr.ErrIO, "open archive", "%s is a directory", r.archive)
	}

	staging, err := im.Store.NewStaging()
	if err != nil {
		return types.SoundPack{}, err
	}
	r.staging = staging
	if err := r.lockStaging(); err != nil {
		return types.SoundPack{}, err
	}
	log.Info("import started", "archive", r.archive, "format", format.String(), "staging", staging)

	r.enter(StateExtracting)
	stats, err := archive.Extract(ctx, format, r.archive, staging, im.Archive)
	if err != nil {
		return types.SoundPack{}, err
	}

	r.enter(StateLocatingManifest)
	desc, err := layout.Locate(staging)
	if err != nil {
		return types.SoundPack{}, err
	}

	if desc.Nested {
		r.enter(StateNormalizing)
		if desc, err = layout.Normalize(staging, desc); err != nil {
			return types.SoundPack{}, err
		}
	}

	r.enter(StateValidating)
	if err := im.Validator.Validate(ctx, staging, desc.Nested); err != nil {
		return types.SoundPack{}, err
	}

	r.enter(StateFinalizing)
	manifest, err := pack.ReadManifest(desc.Path)
	if err != nil {
		return types.SoundPack{}, err
	}
	p := manifest.Resolve(archive.TrimExtension(filepath.Base(r.archive)))
	p.ID = pack.Slugify(p.Name)
	if p.ID == "" {
		return types.SoundPack{}, packerr.InvalidPack("finalize", "pack name %q does not produce a usable identifier", p.Name)
	}
	if im.Store.Exists(p.ID) {
		return types.SoundPack{}, packerr.InvalidPack("finalize", "a sound pack named %q already exists", p.ID)
	}

	usage, err := layout.Measure(staging)
	if err != nil {
		log.Warn("could not measure pack", "error", err)
	}

	dest, err := im.Store.Commit(staging, p.ID)
	if err != nil {
		return types.SoundPack{}, err
	}
	r.staging = ""
	r.enter(StateCommitted)

	p.SizeBytes = usage.Bytes
	p.ImportedAt = time.Now().UTC()
	p.Format = format.String()
	log.Info("pack imported", "id", p.ID, "name", p.Name, "dir", dest,
		"files", stats.Files, "skipped", stats.Skipped, "normalized", desc.Nested)

	im.catalogPut(catalog.Record{
		ID:         p.ID,
		Name:       p.Name,
		Version:    p.Version,
		Archive:    r.archive,
		Format:     p.Format,
		Normalized: desc.Nested,
		Files:      usage.Files,
		SizeBytes:  usage.Bytes,
		ImportedAt: p.ImportedAt,
	})
	im.record(history.Entry{Op: history.OpImport, PackID: p.ID, PackName: p.Name, Archive: r.archive, Format: p.Format})
	return p, nil
}

func (r *run) enter(s State) {
	r.state = s
	if r.im.OnState != nil {
		r.im.OnState(s)
	}
}

// rollback removes the staging directory. Its own failures are logged and
// never replace cause.
func (r *run) rollback(cause error) {
	log := logging.Get("importer")
	failedIn := r.state

	if r.staging != "" {
		if err := os.RemoveAll(r.staging); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Error("rollback failed", "staging", r.staging, "error", err)
		}
		r.staging = ""
	}
	r.enter(StateRolledBack)
	log.Warn("import failed", "archive", r.archive, "state", failedIn.String(), "error", cause)
}

// lockStaging marks the staging directory as owned by this run so CleanStale
// leaves it alone, however long validation takes.
func (r *run) lockStaging() error {
	lock := stagingLock(r.staging)
	locked, err := lock.TryLock()
	if err != nil {
		return packerr.IO("lock staging directory", err)
	}
	if !locked {
		return packerr.New(packerr.ErrIO, "lock staging directory", "%s is already in use", r.staging)
	}
	r.lock = lock
	return nil
}

func (r *run) unlock() {
	if r.lock == nil {
		return
	}
	if err := os.Remove(r.lock.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Get("importer").Warn("failed to remove staging lock", "path", r.lock.Path(), "error", err)
	}
	_ = r.lock.Unlock()
	r.lock = nil
}

func (r *run) formatName() string {
	if r.state <= StateDetecting {
		return ""
	}
	return r.format.String()
}

func (im *Importer) catalogPut(rec catalog.Record) {
	if im.Catalog == nil {
		return
	}
	if err := im.Catalog.Put(rec); err != nil {
		logging.Get("importer").Warn("catalog update failed", "id", rec.ID, "error", err)
	}
}

func (im *Importer) record(e history.Entry) {
	if im.History == nil {
		return
	}
	if _, err := im.History.Record(e); err != nil {
		logging.Get("importer").Warn("history write failed", "op", string(e.Op), "error", err)
	}
}

// Describe renders err for the user, naming the failed step when known.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, packerr.ErrDependencyMissing):
		return fmt.Sprintf("missing dependency: %v", err)
	case errors.Is(err, packerr.ErrUnsupportedFormat):
		return fmt.Sprintf("unsupported archive: %v", err)
	case errors.Is(err, packerr.ErrInvalidArchiveEntry):
		return fmt.Sprintf("unsafe archive: %v", err)
	case errors.Is(err, packerr.ErrCorruptArchive):
		return fmt.Sprintf("damaged archive: %v", err)
	case errors.Is(err, packerr.ErrInvalidPack):
		return fmt.Sprintf("invalid sound pack: %v", err)
	default:
		return err.Error()
	}
}
