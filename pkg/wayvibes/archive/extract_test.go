package archive

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timbo-dev/wayvibes-ui/internal/testutil"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
)

// extractInto runs Extract against a fresh destination beneath a temp dir and
// returns the destination path alongside the results.
func extractInto(t *testing.T, format Format, src string, opts Options) (string, Stats, error) {
	t.Helper()

	dst := filepath.Join(t.TempDir(), "staging")
	require.NoError(t, os.Mkdir(dst, 0755))

	stats, err := Extract(context.Background(), format, src, dst, opts)
	return dst, stats, err
}

func TestExtract_Zip(t *testing.T) {
	src := testutil.WriteZip(t, t.TempDir(), "pack.zip", []testutil.Entry{
		{Name: "clicky/"},
		{Name: "clicky/config.json", Body: `{"name":"Clicky"}`},
		{Name: "clicky/sounds/a.wav", Body: "RIFFa"},
	})

	dst, stats, err := extractInto(t, FormatZip, src, Options{})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"clicky/config.json":  `{"name":"Clicky"}`,
		"clicky/sounds/a.wav": "RIFFa",
	}, testutil.Tree(t, dst))
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, int64(len(`{"name":"Clicky"}`)+len("RIFFa")), stats.Bytes)
}

func TestExtract_ZipTraversalRejected(t *testing.T) {
	for _, name := range []string{"../evil.txt", `..\evil.txt`, "/abs.txt", "ok/../../evil.txt"} {
		t.Run(name, func(t *testing.T) {
			work := t.TempDir()
			src := testutil.WriteZip(t, work, "evil.zip", []testutil.Entry{
				{Name: "config.json", Body: "{}"},
				{Name: name, Body: "pwned"},
			})

			dst := filepath.Join(work, "staging")
			require.NoError(t, os.Mkdir(dst, 0755))

			_, err := Extract(context.Background(), FormatZip, src, dst, Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, packerr.ErrInvalidArchiveEntry)

			// Nothing may appear next to the staging dir.
			_, statErr := os.Stat(filepath.Join(work, "evil.txt"))
			assert.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestExtract_ZipSymlinkSkipped(t *testing.T) {
	src := testutil.WriteZip(t, t.TempDir(), "pack.zip", []testutil.Entry{
		{Name: "config.json", Body: "{}"},
		{Name: "link", Symlink: "/etc/passwd"},
	})

	dst, stats, err := extractInto(t, FormatZip, src, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)

	_, statErr := os.Lstat(filepath.Join(dst, "link"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtract_SkipsArchiverJunk(t *testing.T) {
	src := testutil.WriteZip(t, t.TempDir(), "pack.zip", []testutil.Entry{
		{Name: "__MACOSX/"},
		{Name: "__MACOSX/._config.json", Body: "junk"},
		{Name: "pack/.DS_Store", Body: "junk"},
		{Name: "pack/config.json", Body: "{}"},
	})

	dst, stats, err := extractInto(t, FormatZip, src, Options{})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"pack/config.json": "{}"}, testutil.Tree(t, dst))
	assert.Equal(t, 2, stats.Skipped)
}

func TestExtract_CustomSkip(t *testing.T) {
	src := testutil.WriteZip(t, t.TempDir(), "pack.zip", []testutil.Entry{
		{Name: "config.json", Body: "{}"},
		{Name: "notes.txt", Body: "hi"},
	})

	dst, _, err := extractInto(t, FormatZip, src, Options{Skip: []string{"*.txt"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"config.json": "{}"}, testutil.Tree(t, dst))
}

func TestExtract_TarGzWithRootEntry(t *testing.T) {
	entries := []testutil.Entry{
		{Name: "./"},
		{Name: "./config.json", Body: `{"name":"T"}`},
		{Name: "./sounds/"},
		{Name: "./sounds/1.ogg", Body: "OggS"},
	}

	for _, tc := range []struct {
		file   string
		format Format
		write  func(testing.TB, string, string, []testutil.Entry) string
	}{
		{"pack.tar.gz", FormatTarGz, testutil.WriteTarGz},
		{"pack.tar", FormatTar, testutil.WriteTar},
		{"pack.gz", FormatGz, testutil.WriteTarGz},
	} {
		t.Run(tc.file, func(t *testing.T) {
			src := tc.write(t, t.TempDir(), tc.file, entries)

			dst, stats, err := extractInto(t, tc.format, src, Options{})
			require.NoError(t, err)
			assert.Equal(t, map[string]string{
				"config.json":  `{"name":"T"}`,
				"sounds/1.ogg": "OggS",
			}, testutil.Tree(t, dst))
			assert.Equal(t, 1, stats.Dirs)
		})
	}
}

func TestExtract_TarTraversalRejected(t *testing.T) {
	src := testutil.WriteTarGz(t, t.TempDir(), "evil.tar.gz", []testutil.Entry{
		{Name: "../evil.txt", Body: "pwned"},
	})

	_, _, err := extractInto(t, FormatTarGz, src, Options{})
	assert.ErrorIs(t, err, packerr.ErrInvalidArchiveEntry)
}

func TestExtract_TarSymlinkSkipped(t *testing.T) {
	src := testutil.WriteTar(t, t.TempDir(), "pack.tar", []testutil.Entry{
		{Name: "config.json", Body: "{}"},
		{Name: "escape", Symlink: "../../etc"},
	})

	dst, stats, err := extractInto(t, FormatTar, src, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, map[string]string{"config.json": "{}"}, testutil.Tree(t, dst))
}

func TestExtract_PlainGzipIsNotAPack(t *testing.T) {
	src := testutil.WriteGzip(t, t.TempDir(), "sound.gz", []byte("just one file"))

	_, _, err := extractInto(t, FormatGz, src, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, packerr.ErrInvalidPack)
	assert.Contains(t, err.Error(), ".tar.gz")
}

func TestExtract_SizeLimit(t *testing.T) {
	src := testutil.WriteZip(t, t.TempDir(), "big.zip", []testutil.Entry{
		{Name: "config.json", Body: "{}"},
		{Name: "big.wav", Body: strings.Repeat("x", 64)},
	})

	_, _, err := extractInto(t, FormatZip, src, Options{MaxBytes: 32})
	require.Error(t, err)
	assert.ErrorIs(t, err, packerr.ErrInvalidPack)

	// Exactly at the limit is fine.
	_, _, err = extractInto(t, FormatZip, src, Options{MaxBytes: 66})
	assert.NoError(t, err)

	_, _, err = extractInto(t, FormatZip, src, Options{MaxBytes: -1})
	assert.NoError(t, err)
}

func TestExtract_SevenZ(t *testing.T) {
	dst, stats, err := extractInto(t, FormatSevenZ, filepath.Join("testdata", "pack.7z"), Options{})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"pack/config.json":      `{"name":"Seven Pack","version":"3.1"}`,
		"pack/sounds/click.wav": "RIFFclick",
	}, testutil.Tree(t, dst))
	assert.Equal(t, Stats{Files: 2, Dirs: 2, Bytes: 46}, stats)
}

func TestExtract_Rar(t *testing.T) {
	dst, stats, err := extractInto(t, FormatRar, filepath.Join("testdata", "pack.rar"), Options{})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"pack/config.json":      `{"name":"Rar Pack","version":"5.0"}`,
		"pack/sounds/click.wav": "RIFFrar",
	}, testutil.Tree(t, dst))
	assert.Equal(t, Stats{Files: 2, Dirs: 2, Bytes: 42}, stats)
}

func TestExtract_SevenZAndRarSizeLimit(t *testing.T) {
	for _, tc := range []struct {
		file   string
		format Format
	}{
		{"pack.7z", FormatSevenZ},
		{"pack.rar", FormatRar},
	} {
		t.Run(tc.file, func(t *testing.T) {
			_, _, err := extractInto(t, tc.format, filepath.Join("testdata", tc.file), Options{MaxBytes: 10})
			require.Error(t, err)
			assert.ErrorIs(t, err, packerr.ErrInvalidPack)
		})
	}
}

// TestExtract_DamagedFixtures breaks otherwise valid archives: the 7z loses
// its tail and the rar gets a flipped byte inside a file header.
func TestExtract_DamagedFixtures(t *testing.T) {
	for _, tc := range []struct {
		file   string
		format Format
		damage func(t *testing.T, data []byte) []byte
	}{
		{"pack.7z", FormatSevenZ, func(_ *testing.T, data []byte) []byte {
			return data[:len(data)/2]
		}},
		{"pack.rar", FormatRar, func(t *testing.T, data []byte) []byte {
			i := bytes.Index(data, []byte("pack/config.json"))
			require.Positive(t, i)
			data[i+5] ^= 0xff
			return data
		}},
	} {
		t.Run(tc.file, func(t *testing.T) {
			data, err := os.ReadFile(filepath.Join("testdata", tc.file))
			require.NoError(t, err)

			src := testutil.WriteRaw(t, t.TempDir(), tc.file, tc.damage(t, data))

			_, _, err = extractInto(t, tc.format, src, Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, packerr.ErrCorruptArchive)
		})
	}
}

func TestExtract_CorruptArchives(t *testing.T) {
	garbage := []byte("this is definitely not an archive, just some bytes")

	for _, tc := range []struct {
		file   string
		format Format
	}{
		{"bad.zip", FormatZip},
		{"bad.tar.gz", FormatTarGz},
		{"bad.rar", FormatRar},
		{"bad.7z", FormatSevenZ},
	} {
		t.Run(tc.file, func(t *testing.T) {
			src := testutil.WriteRaw(t, t.TempDir(), tc.file, garbage)

			_, _, err := extractInto(t, tc.format, src, Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, packerr.ErrCorruptArchive)
		})
	}
}

func TestExtract_MissingSource(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.zip")

	_, _, err := extractInto(t, FormatZip, missing, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, packerr.ErrIO)
}

func TestExtract_CanceledContext(t *testing.T) {
	src := testutil.WriteZip(t, t.TempDir(), "pack.zip", testutil.Files(map[string]string{
		"config.json": "{}",
	}))
	dst := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Extract(ctx, FormatZip, src, dst, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, packerr.ErrIO)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtract_UnknownFormat(t *testing.T) {
	_, err := Extract(context.Background(), Format(42), "x", t.TempDir(), Options{})
	assert.ErrorIs(t, err, packerr.ErrUnsupportedFormat)
}

func TestExtract_BadSkipPattern(t *testing.T) {
	src := testutil.WriteZip(t, t.TempDir(), "pack.zip", testutil.Files(map[string]string{"a": "b"}))

	_, err := Extract(context.Background(), FormatZip, src, t.TempDir(), Options{Skip: []string{"[unterminated"}})
	assert.Error(t, err)
}
