package archive

import (
	"context"
	"errors"
	"io"
	"io/fs"

	"github.com/nwaples/rardecode/v2"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

// extractRar follows the archive's block headers in order and streams each
// file entry straight from the decoder.
func extractRar(ctx context.Context, src string, w *writer) (err error) {
	rc, err := rardecode.OpenReader(src)
	if err != nil {
		return openErr(FormatRar, src, err)
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = packerr.IO("close "+src, closeErr)
		}
	}()

	for {
		if err := checkContext(ctx); err != nil {
			return err
		}

		hdr, err := rc.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return corrupt(FormatRar, err)
		}

		switch {
		case hdr.IsDir:
			if err := w.dir(hdr.Name); err != nil {
				return err
			}
		case hdr.Mode()&fs.ModeSymlink != 0:
			if _, err := SanitizePath(hdr.Name); err != nil {
				return err
			}
			w.stats.Skipped++
		default:
			if err := w.file(hdr.Name, rc); err != nil {
				return err
			}
		}
	}
}
