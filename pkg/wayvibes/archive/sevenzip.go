package archive

import (
	"context"
	"io/fs"

	"github.com/bodgit/sevenzip"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

// extractSevenZ opens each 7z entry as a stream so it goes through the same
// sanitizer as every other format. Entries are visited in archive order,
// which keeps solid blocks decoding sequentially.
func extractSevenZ(ctx context.Context, src string, w *writer) (err error) {
	r, err := sevenzip.OpenReader(src)
	if err != nil {
		return openErr(FormatSevenZ, src, err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil && err == nil {
			err = packerr.IO("close "+src, closeErr)
		}
	}()

	for _, f := range r.File {
		if err := checkContext(ctx); err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if isRootEntry(f.Name) {
				continue
			}
			if err := w.dir(f.Name); err != nil {
				return err
			}
		case mode&fs.ModeSymlink != 0:
			if _, err := SanitizePath(f.Name); err != nil {
				return err
			}
			w.stats.Skipped++
		default:
			if err := extractSevenZFile(f, w); err != nil {
				return err
			}
		}
	}
	return nil
}

func extractSevenZFile(f *sevenzip.File, w *writer) (err error) {
	if _, err := SanitizePath(f.Name); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return corrupt(FormatSevenZ, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = corrupt(FormatSevenZ, closeErr)
		}
	}()

	return w.file(f.Name, rc)
}
