package archive

import (
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

// SanitizePath converts an archive entry path into a relative, slash-separated
// path confined to the extraction root. Parent references, absolute roots and
// drive prefixes are rejected outright rather than stripped.
func SanitizePath(entry string) (string, error) {
	if strings.HasPrefix(entry, "/") || strings.HasPrefix(entry, `\`) {
		return "", invalidEntry(entry, "absolute path")
	}

	segments := strings.FieldsFunc(entry, func(r rune) bool {
		return r == '/' || r == '\\'
	})

	clean := make([]string, 0, len(segments))
	for i, seg := range segments {
		switch {
		case seg == ".":
			continue
		case seg == "..":
			return "", invalidEntry(entry, "parent directory reference")
		case i == 0 && isDrivePrefix(seg):
			return "", invalidEntry(entry, "drive root")
		case strings.ContainsRune(seg, 0):
			return "", invalidEntry(entry, "NUL byte in name")
		}
		clean = append(clean, seg)
	}

	if len(clean) == 0 {
		return "", invalidEntry(entry, "empty path")
	}
	return strings.Join(clean, "/"), nil
}

// Resolve sanitizes entry and joins it onto root. The join goes through
// SecureJoin so symlinks already present under root cannot redirect the write.
func Resolve(root, entry string) (string, error) {
	rel, err := SanitizePath(entry)
	if err != nil {
		return "", err
	}

	target, err := securejoin.SecureJoin(root, filepath.FromSlash(rel))
	if err != nil {
		return "", packerr.IO("resolve "+entry, err)
	}

	back, err := filepath.Rel(root, target)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", invalidEntry(entry, "resolves outside extraction root")
	}
	return target, nil
}

// isDrivePrefix reports whether seg looks like a Windows volume ("C:").
func isDrivePrefix(seg string) bool {
	if len(seg) < 2 || seg[1] != ':' {
		return false
	}
	c := seg[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func invalidEntry(entry, reason string) error {
	return packerr.New(packerr.ErrInvalidArchiveEntry, "sanitize", "archive entry %q rejected: %s", entry, reason)
}
