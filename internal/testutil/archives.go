// Package testutil builds archive fixtures and fake executables for tests.
package testutil

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Entry is one archive member. A name ending in "/" is a directory.
type Entry struct {
	Name    string
	Body    string
	Symlink string
}

// Files converts a name->body map into entries sorted by name.
func Files(files map[string]string) []Entry {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Body: files[name]})
	}
	return entries
}

// WriteZip writes a zip archive at dir/name and returns its path.
func WriteZip(t testing.TB, dir, name string, entries []Entry) string {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		switch {
		case strings.HasSuffix(e.Name, "/"):
			hdr.SetMode(os.ModeDir | 0o755)
		case e.Symlink != "":
			hdr.SetMode(os.ModeSymlink | 0o777)
		default:
			hdr.SetMode(0o644)
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("zip create %s: %v", e.Name, err)
		}
		body := e.Body
		if e.Symlink != "" {
			body = e.Symlink
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("zip write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return writeFile(t, dir, name, buf.Bytes())
}

// TarBytes returns an uncompressed tar stream holding entries.
func TarBytes(t testing.TB, entries []Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: 0o644, Size: int64(len(e.Body)), Typeflag: tar.TypeReg}
		switch {
		case strings.HasSuffix(e.Name, "/"):
			hdr.Typeflag, hdr.Mode, hdr.Size = tar.TypeDir, 0o755, 0
		case e.Symlink != "":
			hdr.Typeflag, hdr.Linkname, hdr.Size = tar.TypeSymlink, e.Symlink, 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("tar header %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("tar write %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	return buf.Bytes()
}

// WriteTar writes an uncompressed tar archive at dir/name.
func WriteTar(t testing.TB, dir, name string, entries []Entry) string {
	t.Helper()
	return writeFile(t, dir, name, TarBytes(t, entries))
}

// WriteTarGz writes a gzip-compressed tar archive at dir/name.
func WriteTarGz(t testing.TB, dir, name string, entries []Entry) string {
	t.Helper()
	return WriteGzip(t, dir, name, TarBytes(t, entries))
}

// WriteGzip gzips payload into dir/name.
func WriteGzip(t testing.TB, dir, name string, payload []byte) string {
	t.Helper()

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(payload); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return writeFile(t, dir, name, buf.Bytes())
}

// WriteRaw writes arbitrary bytes at dir/name.
func WriteRaw(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	return writeFile(t, dir, name, data)
}

func writeFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
