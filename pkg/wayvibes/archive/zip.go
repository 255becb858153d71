package archive

import (
	"archive/zip"
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

// extractZip walks every entry of a zip archive by index.
func extractZip(ctx context.Context, src string, w *writer) (err error) {
	zr, err := zip.OpenReader(src)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && zr != nil) {
		// Insecure names are left to SanitizePath so they surface as
		// ErrInvalidArchiveEntry.
		return openErr(FormatZip, src, err)
	}
	defer func() {
		if closeErr := zr.Close(); closeErr != nil && err == nil {
			err = packerr.IO("close "+src, closeErr)
		}
	}()

	for _, f := range zr.File {
		if err := checkContext(ctx); err != nil {
			return err
		}

		// Directories are created implicitly by the files beneath them.
		if strings.HasSuffix(f.Name, "/") || strings.HasSuffix(f.Name, `\`) {
			continue
		}
		if f.Mode()&fs.ModeSymlink != 0 {
			if _, err := SanitizePath(f.Name); err != nil {
				return err
			}
			w.stats.Skipped++
			continue
		}

		if err := extractZipFile(f, w); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, w *writer) (err error) {
	// Sanitize before touching the entry's data.
	if _, err := SanitizePath(f.Name); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return corrupt(FormatZip, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = corrupt(FormatZip, closeErr)
		}
	}()

	return w.file(f.Name, rc)
}

// openErr distinguishes a missing or unreadable file from an undecodable one.
func openErr(format Format, src string, err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return packerr.IO("open "+src, err)
	}
	return corrupt(format, err)
}
