package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

// DefaultMaxBytes is the default uncompressed size budget for one archive (2 GiB).
const DefaultMaxBytes int64 = 2 << 30

// DefaultSkip lists entries that archivers add on their own and that never
// belong in a pack.
var DefaultSkip = []string{
	"__MACOSX",
	"__MACOSX/**",
	"**/.DS_Store",
	".DS_Store",
	"**/Thumbs.db",
	"Thumbs.db",
}

// Options tunes extraction.
type Options struct {
	// MaxBytes caps the total uncompressed bytes written. Zero uses DefaultMaxBytes,
	// a negative value disables the cap.
	MaxBytes int64

	// Skip holds glob patterns matched against sanitized slash paths.
	Skip []string
}

// Stats summarizes an extraction.
type Stats struct {
	Files   int   `json:"files"`
	Dirs    int   `json:"dirs"`
	Bytes   int64 `json:"bytes"`
	Skipped int   `json:"skipped"`
}

type extractFunc func(ctx context.Context, src string, w *writer) error

// extractors is the per-format dispatch table.
var extractors = map[Format]extractFunc{
	FormatZip:    extractZip,
	FormatTar:    extractTar,
	FormatTarGz:  extractTarGz,
	FormatGz:     extractGz,
	FormatRar:    extractRar,
	FormatSevenZ: extractSevenZ,
}

// Extract unpacks the archive at src into dst, which must already exist.
func Extract(ctx context.Context, format Format, src, dst string, opts Options) (Stats, error) {
	fn, ok := extractors[format]
	if !ok {
		return Stats{}, packerr.New(packerr.ErrUnsupportedFormat, "extract", "no extractor for format %s", format)
	}

	w, err := newWriter(dst, opts)
	if err != nil {
		return Stats{}, err
	}

	log := logging.Get("archive")
	log.Debug("extracting archive", "src", src, "dst", dst, "format", format.String())

	if err := fn(ctx, src, w); err != nil {
		return w.stats, err
	}

	log.Debug("extraction finished", "files", w.stats.Files, "bytes", w.stats.Bytes, "skipped", w.stats.Skipped)
	return w.stats, nil
}

// writer materializes sanitized entries beneath root and enforces the byte budget.
type writer struct {
	root      string
	remaining int64
	limited   bool
	skip      []glob.Glob
	stats     Stats
}

func newWriter(root string, opts Options) (*writer, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, packerr.IO("extract", err)
	}

	patterns := opts.Skip
	if patterns == nil {
		patterns = DefaultSkip
	}
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling skip pattern %q: %w", p, err)
		}
		compiled = append(compiled, g)
	}

	w := &writer{root: abs, skip: compiled}
	switch {
	case opts.MaxBytes == 0:
		w.remaining, w.limited = DefaultMaxBytes, true
	case opts.MaxBytes > 0:
		w.remaining, w.limited = opts.MaxBytes, true
	}
	return w, nil
}

// skipped reports whether the sanitized path matches a skip pattern.
func (w *writer) skipped(rel string) bool {
	for _, g := range w.skip {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// dir creates a directory entry.
func (w *writer) dir(name string) error {
	rel, err := SanitizePath(name)
	if err != nil {
		return err
	}
	if w.skipped(rel) {
		return nil
	}
	target, err := Resolve(w.root, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return packerr.IO("create directory "+rel, err)
	}
	w.stats.Dirs++
	return nil
}

// file streams r into the sanitized location of name.
func (w *writer) file(name string, r io.Reader) error {
	rel, err := SanitizePath(name)
	if err != nil {
		return err
	}
	if w.skipped(rel) {
		w.stats.Skipped++
		return nil
	}
	target, err := Resolve(w.root, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return packerr.IO("create directory for "+rel, err)
	}

	n, err := w.copyFile(target, r)
	w.stats.Bytes += n
	if err != nil {
		return err
	}
	w.stats.Files++
	return nil
}

func (w *writer) copyFile(target string, r io.Reader) (written int64, err error) {
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, packerr.IO("create "+target, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = packerr.IO("close "+target, closeErr)
		}
	}()

	src := r
	if w.limited {
		// One extra byte distinguishes "exactly at budget" from "over budget".
		src = io.LimitReader(r, w.remaining+1)
	}

	written, err = io.Copy(out, src)
	if w.limited {
		w.remaining -= written
		if w.remaining < 0 {
			return written, packerr.InvalidPack("extract", "archive exceeds the uncompressed size limit")
		}
	}
	if err != nil {
		return written, classifyCopyErr(target, err)
	}
	return written, nil
}

// classifyCopyErr separates write failures from decode failures while copying.
func classifyCopyErr(target string, err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return packerr.IO("write "+target, err)
	}
	return packerr.Wrap(packerr.ErrCorruptArchive, "read entry for "+filepath.Base(target), err)
}

// checkContext returns an I/O error when ctx is done.
func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return packerr.IO("extract", err)
	}
	return nil
}

// corrupt classifies a decoder failure for the given format.
func corrupt(format Format, err error) error {
	return &packerr.Error{Kind: packerr.ErrCorruptArchive, Op: "extract", Msg: "cannot read " + format.String() + " archive", Err: err}
}
