//go:build !linux

package store

func renameNoReplace(oldpath, newpath string) error {
	return checkedRename(oldpath, newpath)
}
