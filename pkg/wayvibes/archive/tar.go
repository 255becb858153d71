package archive

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	gzip "github.com/klauspost/pgzip"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/logging"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

func extractTar(ctx context.Context, src string, w *writer) (err error) {
	f, err := os.Open(src)
	if err != nil {
		return packerr.IO("open "+src, err)
	}
	defer f.Close()

	return untar(ctx, FormatTar, f, w)
}

func extractTarGz(ctx context.Context, src string, w *writer) error {
	return untarGzip(ctx, FormatTarGz, src, w)
}

// extractGz treats a bare .gz as a gzip-compressed tar stream. Single-file
// gzip payloads are not packs.
func extractGz(ctx context.Context, src string, w *writer) error {
	err := untarGzip(ctx, FormatGz, src, w)
	if err != nil && errors.Is(err, packerr.ErrCorruptArchive) {
		return &packerr.Error{
			Kind: packerr.ErrInvalidPack,
			Op:   "extract",
			Msg:  "gzip file is not a tar stream; sound packs must be packaged as .tar.gz",
			Err:  err,
		}
	}
	return err
}

func untarGzip(ctx context.Context, format Format, src string, w *writer) error {
	f, err := os.Open(src)
	if err != nil {
		return packerr.IO("open "+src, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return corrupt(format, err)
	}
	defer gz.Close()

	return untar(ctx, format, gz, w)
}

// untar streams tar entries in order. Only directories and regular files are
// materialized; links and devices are skipped after their names are checked.
func untar(ctx context.Context, format Format, r io.Reader, w *writer) error {
	log := logging.Get("archive")
	tr := tar.NewReader(r)

	for {
		if err := checkContext(ctx); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && !(errors.Is(err, tar.ErrInsecurePath) && hdr != nil) {
			return corrupt(format, err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if isRootEntry(hdr.Name) {
				continue
			}
			if err := w.dir(hdr.Name); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := w.file(hdr.Name, tr); err != nil {
				return err
			}
		case tar.TypeXGlobalHeader:
			continue
		default:
			if _, err := SanitizePath(hdr.Name); err != nil {
				return err
			}
			log.Debug("skipping non-regular tar entry", "name", hdr.Name, "type", string(hdr.Typeflag))
			w.stats.Skipped++
		}
	}
}

// isRootEntry reports whether name refers to the archive root itself ("./").
func isRootEntry(name string) bool {
	segments := strings.FieldsFunc(name, func(r rune) bool { return r == '/' || r == '\\' })
	for _, seg := range segments {
		if seg != "." {
			return false
		}
	}
	return !strings.HasPrefix(name, "/")
}
