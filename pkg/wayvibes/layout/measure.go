package layout

import (
	"errors"
	"io/fs"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

// Usage is the file count and total size of a directory tree.
type Usage struct {
	Files int
	Bytes int64
}

// Measure totals regular files under dir without following symlinks.
func Measure(dir string) (Usage, error) {
	var files, bytes atomic.Int64

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files.Add(1)
		bytes.Add(info.Size())
		return nil
	})
	if err != nil && !errors.Is(err, fastwalk.ErrSkipFiles) {
		return Usage{}, packerr.IO("measure "+dir, err)
	}
	return Usage{Files: int(files.Load()), Bytes: bytes.Load()}, nil
}
