package store

import (
	"os"
)

// checkedRename refuses to replace an existing newpath. The check and the
// rename are separate steps, so two racing callers can both pass the check.
func checkedRename(oldpath, newpath string) error {
	if _, err := os.Lstat(newpath); err == nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrExist}
	}
	return os.Rename(oldpath, newpath)
}
