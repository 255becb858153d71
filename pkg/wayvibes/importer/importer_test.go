package importer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timbo-dev/wayvibes-ui/internal/testutil"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/catalog"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/history"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/importer"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/layout"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/store"
)

type fakeValidator struct {
	mu         sync.Mutex
	missing    bool
	reject     error
	calls      int
	normalized []bool
	seen       []map[string]string
	hold       func(dir string)
	t          *testing.T
}

func (f *fakeValidator) CheckInstalled() (string, error) {
	if f.missing {
		return "", packerr.New(packerr.ErrDependencyMissing, "validator", "wayvibes is not installed")
	}
	return "/usr/bin/wayvibes", nil
}

func (f *fakeValidator) Validate(_ context.Context, dir string, normalized bool) error {
	if f.hold != nil {
		f.hold(dir)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.normalized = append(f.normalized, normalized)
	f.seen = append(f.seen, testutil.Tree(f.t, dir))
	return f.reject
}

type fixture struct {
	im      *importer.Importer
	store   *store.Store
	val     *fakeValidator
	catalog *catalog.Catalog
	history *history.Log
	states  []importer.State
	src     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat, err := catalog.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	hist, err := history.New(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		store:   store.New(filepath.Join(t.TempDir(), "packs")),
		val:     &fakeValidator{t: t},
		catalog: cat,
		history: hist,
		src:     t.TempDir(),
	}
	f.im = &importer.Importer{
		Store:     f.store,
		Validator: f.val,
		Catalog:   cat,
		History:   hist,
		OnState:   func(s importer.State) { f.states = append(f.states, s) },
	}
	return f
}

// stagingEntries lists what is left in the staging area. A missing area
// counts as empty.
func (f *fixture) stagingEntries(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.store.StagingArea())
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestImport_NestedZip(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteZip(t, f.src, "download.zip", testutil.Files(map[string]string{
		"pack/config.json": `{"name":"My Pack","version":"2.0"}`,
		"pack/a.wav":       "aaaa",
	}))

	p, err := f.im.Import(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, "my-pack", p.ID)
	assert.Equal(t, "My Pack", p.Name)
	assert.Equal(t, "2.0", p.Version)
	assert.Equal(t, "zip", p.Format)
	assert.False(t, p.ImportedAt.IsZero())

	dir, err := f.store.Path("my-pack")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"config.json": `{"name":"My Pack","version":"2.0"}`,
		"a.wav":       "aaaa",
	}, testutil.Tree(t, dir))

	assert.Equal(t, []bool{true}, f.val.normalized)
	assert.Empty(t, f.stagingEntries(t))
	assert.Equal(t, []importer.State{
		importer.StateIdle,
		importer.StateDetecting,
		importer.StateExtracting,
		importer.StateLocatingManifest,
		importer.StateNormalizing,
		importer.StateValidating,
		importer.StateFinalizing,
		importer.StateCommitted,
	}, f.states)

	packs, err := f.store.List()
	require.NoError(t, err)
	require.Len(t, packs, 1)
	assert.Equal(t, "my-pack", packs[0].ID)
}

func TestImport_RootManifestSkipsNormalizing(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteTarGz(t, f.src, "keys.tgz", testutil.Files(map[string]string{
		"config.json":  `{"name":"Keys"}`,
		"sounds/1.ogg": "1",
	}))

	p, err := f.im.Import(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "keys", p.ID)
	assert.Equal(t, "1.0.0", p.Version)
	assert.Equal(t, []bool{false}, f.val.normalized)
	assert.NotContains(t, f.states, importer.StateNormalizing)
}

func TestImport_DeepManifestNormalized(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteZip(t, f.src, "deep.zip", testutil.Files(map[string]string{
		"a/b/c/config.json": `{"name":"Deep"}`,
		"a/b/c/x/1.wav":     "1",
	}))

	p, err := f.im.Import(context.Background(), src)
	require.NoError(t, err)

	dir, err := f.store.Path(p.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"config.json": `{"name":"Deep"}`,
		"x/1.wav":     "1",
	}, testutil.Tree(t, dir))
	assert.NoDirExists(t, filepath.Join(dir, "a"))

	// The validator saw the flattened layout.
	require.Len(t, f.val.seen, 1)
	assert.Contains(t, f.val.seen[0], "config.json")
}

func TestImport_NestedSevenZ(t *testing.T) {
	f := newFixture(t)
	data, err := os.ReadFile(filepath.Join("..", "archive", "testdata", "nested.7z"))
	require.NoError(t, err)
	src := testutil.WriteRaw(t, f.src, "MX Blue.7z", data)

	p, err := f.im.Import(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, "mx-blue", p.ID)
	assert.Equal(t, "MX Blue", p.Name)
	assert.Equal(t, "7z", p.Format)
	require.NotNil(t, p.Author)
	assert.Equal(t, "timbo", *p.Author)

	dir, err := f.store.Path("mx-blue")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"config.json": `{"name":"MX Blue","author":"timbo"}`,
		"1.wav":       "RIFFblue",
	}, testutil.Tree(t, dir))
	assert.NoDirExists(t, filepath.Join(dir, "Downloads"))
	assert.Equal(t, []bool{true}, f.val.normalized)
	assert.Empty(t, f.stagingEntries(t))
}

func TestImport_NameFallsBackToArchiveName(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteTarGz(t, f.src, "Cool Sounds.tar.gz", testutil.Files(map[string]string{
		"config.json": `{"author":"me"}`,
	}))

	p, err := f.im.Import(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "cool-sounds", p.ID)
	assert.Equal(t, "Cool Sounds", p.Name)
	require.NotNil(t, p.Author)
	assert.Equal(t, "me", *p.Author)
}

func TestImport_Collision(t *testing.T) {
	f := newFixture(t)
	first := testutil.WriteZip(t, f.src, "one.zip", testutil.Files(map[string]string{
		"config.json": `{"name":"Same"}`,
		"one.wav":     "1",
	}))
	second := testutil.WriteZip(t, f.src, "two.zip", testutil.Files(map[string]string{
		"config.json": `{"name":"SAME"}`,
		"two.wav":     "2",
	}))

	_, err := f.im.Import(context.Background(), first)
	require.NoError(t, err)

	_, err = f.im.Import(context.Background(), second)
	require.Error(t, err)
	assert.ErrorIs(t, err, packerr.ErrInvalidPack)
	assert.Contains(t, err.Error(), "already exists")

	dir, err := f.store.Path("same")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"config.json": `{"name":"Same"}`,
		"one.wav":     "1",
	}, testutil.Tree(t, dir))
	assert.Empty(t, f.stagingEntries(t))
	assert.Equal(t, importer.StateRolledBack, f.states[len(f.states)-1])
}

func TestImport_NoManifestLeavesNothing(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteZip(t, f.src, "empty.zip", testutil.Files(map[string]string{
		"readme.txt":  "hi",
		"sub/1.wav":   "1",
		"sub/2/3.wav": "3",
	}))

	_, err := f.im.Import(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, layout.ErrManifestNotFound)
	assert.ErrorIs(t, err, packerr.ErrInvalidPack)

	assert.Empty(t, f.stagingEntries(t))
	packs, err := f.store.List()
	require.NoError(t, err)
	assert.Empty(t, packs)
	assert.Zero(t, f.val.calls)
}

func TestImport_MissingValidatorCreatesNoStaging(t *testing.T) {
	f := newFixture(t)
	f.val.missing = true
	src := testutil.WriteZip(t, f.src, "p.zip", testutil.Files(map[string]string{"config.json": `{}`}))

	_, err := f.im.Import(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, packerr.ErrDependencyMissing)
	assert.NoDirExists(t, f.store.StagingArea())
	assert.NoDirExists(t, f.store.Root())
}

func TestImport_UnsupportedFormatCreatesNoStaging(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteRaw(t, f.src, "pack.txt", []byte("nope"))

	_, err := f.im.Import(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, packerr.ErrUnsupportedFormat)
	assert.NoDirExists(t, f.store.StagingArea())
}

func TestImport_MissingArchive(t *testing.T) {
	f := newFixture(t)

	_, err := f.im.Import(context.Background(), filepath.Join(f.src, "gone.zip"))
	require.Error(t, err)
	assert.ErrorIs(t, err, packerr.ErrIO)
	assert.NoDirExists(t, f.store.StagingArea())
}

func TestImport_ValidatorRejectionRollsBack(t *testing.T) {
	f := newFixture(t)
	f.val.reject = packerr.InvalidPack("validate", "wayvibes rejected the pack")
	src := testutil.WriteZip(t, f.src, "bad.zip", testutil.Files(map[string]string{
		"config.json": `{"name":"Bad"}`,
	}))

	_, err := f.im.Import(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, packerr.ErrInvalidPack)
	assert.False(t, f.store.Exists("bad"))
	assert.Empty(t, f.stagingEntries(t))
	assert.Equal(t, importer.StateRolledBack, f.states[len(f.states)-1])
}

func TestImport_UnsafeEntryRollsBack(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteZip(t, f.src, "evil.zip", []testutil.Entry{
		{Name: "config.json", Body: `{"name":"Evil"}`},
		{Name: "../escape.txt", Body: "x"},
	})

	_, err := f.im.Import(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, packerr.ErrInvalidArchiveEntry)
	assert.Empty(t, f.stagingEntries(t))
	assert.NoFileExists(t, filepath.Join(f.store.Root(), "escape.txt"))
}

func TestImport_EmptyIdentifier(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteZip(t, f.src, "sym.zip", testutil.Files(map[string]string{
		"config.json": `{"name":"!!!"}`,
	}))

	_, err := f.im.Import(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, packerr.ErrInvalidPack)
	assert.Contains(t, err.Error(), "identifier")
	assert.Empty(t, f.stagingEntries(t))
}

func TestImport_MalformedManifest(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteZip(t, f.src, "broken.zip", testutil.Files(map[string]string{
		"config.json": `{"name":`,
	}))

	_, err := f.im.Import(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, packerr.ErrInvalidPack)
	assert.Empty(t, f.stagingEntries(t))
}

func TestImport_RecordsCatalogAndHistory(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteZip(t, f.src, "rec.zip", testutil.Files(map[string]string{
		"wrap/config.json": `{"name":"Rec","version":"3"}`,
		"wrap/1.wav":       "12345",
	}))
	bad := testutil.WriteZip(t, f.src, "bad.zip", testutil.Files(map[string]string{"x.wav": "x"}))

	_, err := f.im.Import(context.Background(), src)
	require.NoError(t, err)
	_, err = f.im.Import(context.Background(), bad)
	require.Error(t, err)

	rec, err := f.catalog.Get("rec")
	require.NoError(t, err)
	assert.Equal(t, "Rec", rec.Name)
	assert.Equal(t, "3", rec.Version)
	assert.Equal(t, src, rec.Archive)
	assert.Equal(t, "zip", rec.Format)
	assert.True(t, rec.Normalized)
	assert.Equal(t, 2, rec.Files)
	assert.Equal(t, int64(len(`{"name":"Rec","version":"3"}`)+5), rec.SizeBytes)

	entries, err := f.history.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	ops := map[history.Op]history.Entry{}
	for _, e := range entries {
		ops[e.Op] = e
	}
	assert.Equal(t, "rec", ops[history.OpImport].PackID)
	assert.Equal(t, bad, ops[history.OpImportFailed].Archive)
	assert.NotEmpty(t, ops[history.OpImportFailed].Error)
}

func TestImport_WithoutCatalogOrHistory(t *testing.T) {
	f := newFixture(t)
	f.im.Catalog = nil
	f.im.History = nil
	src := testutil.WriteZip(t, f.src, "plain.zip", testutil.Files(map[string]string{"config.json": `{"name":"Plain"}`}))

	p, err := f.im.Import(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, "plain", p.ID)
}

func TestImportAsync(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteZip(t, f.src, "async.zip", testutil.Files(map[string]string{"config.json": `{"name":"Async"}`}))

	var res importer.Result
	select {
	case res = <-f.im.ImportAsync(context.Background(), src):
	case <-time.After(10 * time.Second):
		t.Fatal("import did not finish")
	}
	require.NoError(t, res.Err)
	assert.Equal(t, "async", res.Pack.ID)
}

func TestImport_ConcurrentSameID(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("no-replace rename is linux only")
	}
	f := newFixture(t)
	f.im.OnState = nil
	var srcs []string
	for _, name := range []string{"a.zip", "b.zip", "c.zip", "d.zip"} {
		srcs = append(srcs, testutil.WriteZip(t, f.src, name, testutil.Files(map[string]string{
			"config.json": `{"name":"Race"}`,
			"body.wav":    name,
		})))
	}

	errs := make(chan error, len(srcs))
	var wg sync.WaitGroup
	for _, src := range srcs {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			_, err := f.im.Import(context.Background(), src)
			errs <- err
		}(src)
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, packerr.ErrInvalidPack), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Empty(t, f.stagingEntries(t))

	dir, err := f.store.Path("race")
	require.NoError(t, err)
	assert.Len(t, testutil.Tree(t, dir), 2)
}

func TestCleanStale(t *testing.T) {
	f := newFixture(t)
	area := f.store.StagingArea()
	old := filepath.Join(area, "1-deadbeef")
	flatten := filepath.Join(area, "1-deadbeef"+layout.FlattenMarker+"x")
	fresh := filepath.Join(area, "2-cafebabe")
	for _, d := range []string{old, flatten, fresh} {
		require.NoError(t, os.MkdirAll(filepath.Join(d, "inner"), 0o755))
	}
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(flatten, past, past))

	orphanLock := filepath.Join(area, "3-0ddba11.lock")
	require.NoError(t, os.WriteFile(orphanLock, nil, 0o644))
	require.NoError(t, os.Chtimes(orphanLock, past, past))

	dirs, err := f.im.ListStaging()
	require.NoError(t, err)
	require.Len(t, dirs, 3)
	assert.Equal(t, fresh, dirs[2].Path)
	flat := 0
	for _, d := range dirs {
		if d.Flatten {
			flat++
		}
	}
	assert.Equal(t, 1, flat)

	res := f.im.CleanStale(context.Background(), importer.DefaultStaleAge)
	assert.Empty(t, res.Errors)
	assert.ElementsMatch(t, []string{old, flatten}, res.Removed)
	assert.Empty(t, res.InUse)
	assert.DirExists(t, fresh)
	assert.NoDirExists(t, old)
	assert.Equal(t, []string{"2-cafebabe"}, f.stagingEntries(t))
}

func TestCleanStale_SkipsImportInProgress(t *testing.T) {
	f := newFixture(t)
	entered := make(chan string)
	release := make(chan struct{})
	f.val.hold = func(dir string) {
		entered <- dir
		<-release
	}
	src := testutil.WriteZip(t, f.src, "slow.zip", testutil.Files(map[string]string{
		"config.json": `{"name":"Slow"}`,
	}))

	ch := f.im.ImportAsync(context.Background(), src)
	dir := <-entered

	// The validator has been stuck for two days.
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(dir, past, past))

	res := f.im.CleanStale(context.Background(), time.Hour)
	assert.Empty(t, res.Removed)
	assert.Empty(t, res.Errors)
	assert.Equal(t, []string{dir}, res.InUse)
	assert.DirExists(t, dir)

	close(release)
	r := <-ch
	require.NoError(t, r.Err)
	assert.Equal(t, "slow", r.Pack.ID)
	assert.Empty(t, f.stagingEntries(t))
}

func TestCleanStale_MissingArea(t *testing.T) {
	f := newFixture(t)

	res := f.im.CleanStale(context.Background(), time.Hour)
	assert.Empty(t, res.Removed)
	assert.Empty(t, res.Errors)

	dirs, err := f.im.ListStaging()
	require.NoError(t, err)
	assert.Empty(t, dirs)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "locating manifest", importer.StateLocatingManifest.String())
	assert.Equal(t, "rolled back", importer.StateRolledBack.String())
	assert.Equal(t, "unknown", importer.State(99).String())
	assert.True(t, importer.StateCommitted.Terminal())
	assert.False(t, importer.StateValidating.Terminal())
}

func TestDescribe(t *testing.T) {
	assert.Empty(t, importer.Describe(nil))
	assert.Contains(t, importer.Describe(packerr.InvalidPack("x", "nope")), "invalid sound pack")
	assert.Contains(t, importer.Describe(packerr.New(packerr.ErrUnsupportedFormat, "detect", "foo.txt")), "unsupported archive")
}
