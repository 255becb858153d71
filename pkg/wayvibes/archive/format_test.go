package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		want Format
	}{
		{"pack.zip", FormatZip},
		{"PACK.ZIP", FormatZip},
		{"pack.tar", FormatTar},
		{"pack.tar.gz", FormatTarGz},
		{"Pack.Tar.Gz", FormatTarGz},
		{"pack.tgz", FormatTarGz},
		{"pack.gz", FormatGz},
		{"pack.rar", FormatRar},
		{"pack.7z", FormatSevenZ},
		{"/home/user/Downloads/my.pack.v2.zip", FormatZip},
		{"  spaced.zip  ", FormatZip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFormat_Unsupported(t *testing.T) {
	for _, name := range []string{"pack.txt", "pack", "pack.zip.bak", "pack.bz2", ""} {
		t.Run(name, func(t *testing.T) {
			_, err := DetectFormat(name)
			require.Error(t, err)
			assert.ErrorIs(t, err, packerr.ErrUnsupportedFormat)
		})
	}
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "zip", FormatZip.String())
	assert.Equal(t, "tar.gz", FormatTarGz.String())
	assert.Equal(t, "7z", FormatSevenZ.String())
	assert.Equal(t, "unknown", Format(99).String())
}

func TestTrimExtension(t *testing.T) {
	assert.Equal(t, "My Pack", TrimExtension("My Pack.ZIP"))
	assert.Equal(t, "clicky", TrimExtension("clicky.tar.gz"))
	assert.Equal(t, "clicky", TrimExtension("clicky.tgz"))
	assert.Equal(t, "notes.txt", TrimExtension("notes.txt"))
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	assert.Contains(t, exts, ".zip")
	assert.Contains(t, exts, ".7z")
	assert.Equal(t, ".tar.gz", exts[0], "most specific suffix must be checked first")
}
