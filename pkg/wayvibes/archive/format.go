// Package archive detects sound pack archive formats and extracts them into a
// staging directory. Every entry path is sanitized before anything is written,
// so no entry can land outside the destination root.
package archive

import (
	"strings"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

// Format is a supported archive format.
type Format int

// Supported formats.
const (
	FormatZip Format = iota
	FormatTar
	FormatTarGz
	FormatGz
	FormatRar
	FormatSevenZ
)

// String returns the conventional name of the format.
func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTar:
		return "tar"
	case FormatTarGz:
		return "tar.gz"
	case FormatGz:
		return "gz"
	case FormatRar:
		return "rar"
	case FormatSevenZ:
		return "7z"
	default:
		return "unknown"
	}
}

// suffixes is ordered from most to least specific so ".tar.gz" never
// resolves to plain gzip.
var suffixes = []struct {
	ext    string
	format Format
}{
	{".tar.gz", FormatTarGz},
	{".tgz", FormatTarGz},
	{".tar", FormatTar},
	{".gz", FormatGz},
	{".zip", FormatZip},
	{".rar", FormatRar},
	{".7z", FormatSevenZ},
}

// DetectFormat classifies a file name by its extension. Content is not inspected.
func DetectFormat(name string) (Format, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.ext) {
			return s.format, nil
		}
	}
	return 0, packerr.New(packerr.ErrUnsupportedFormat, "detect",
		"unsupported archive format %q (expected one of %s)", name, strings.Join(SupportedExtensions(), ", "))
}

// SupportedExtensions lists every recognized archive suffix.
func SupportedExtensions() []string {
	exts := make([]string, len(suffixes))
	for i, s := range suffixes {
		exts[i] = s.ext
	}
	return exts
}

// TrimExtension strips a recognized archive suffix from name, preserving case.
func TrimExtension(name string) string {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.ext) {
			return name[:len(name)-len(s.ext)]
		}
	}
	return name
}
