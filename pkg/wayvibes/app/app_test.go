package app_test

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timbo-dev/wayvibes-ui/internal/testutil"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/app"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/catalog"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/history"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/importer"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/packerr"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/settings"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/store"
	"github.com/timbo-dev/wayvibes-ui/pkg/wayvibes/types"
)

type okValidator struct{}

func (okValidator) CheckInstalled() (string, error) { return "wayvibes", nil }

func (okValidator) Validate(context.Context, string, bool) error { return nil }

type start struct {
	Dir    string
	Volume float64
}

type fakePlayer struct {
	mu      sync.Mutex
	missing bool
	starts  []start
	stops   int
}

func (p *fakePlayer) missingErr() error {
	return packerr.New(packerr.ErrDependencyMissing, "player", "wayvibes is not installed")
}

func (p *fakePlayer) Status(context.Context) (types.PlayerStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return types.PlayerStatus{Installed: !p.missing, Running: len(p.starts) > p.stops}, nil
}

func (p *fakePlayer) Start(_ context.Context, dir string, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.missing {
		return p.missingErr()
	}
	p.starts = append(p.starts, start{dir, volume})
	return nil
}

func (p *fakePlayer) Stop(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.missing {
		return 0, p.missingErr()
	}
	p.stops++
	return 1, nil
}

type fixture struct {
	svc    *app.Service
	player *fakePlayer
	src    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()
	st := store.New(filepath.Join(root, "packs"))
	prefs, err := settings.Open(filepath.Join(root, settings.FileName))
	require.NoError(t, err)
	cat, err := catalog.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })
	hist, err := history.New(filepath.Join(root, "history"))
	require.NoError(t, err)

	player := &fakePlayer{}
	return &fixture{
		svc: &app.Service{
			Store:    st,
			Importer: &importer.Importer{Store: st, Validator: okValidator{}, Catalog: cat, History: hist},
			Prefs:    prefs,
			Player:   player,
			Catalog:  cat,
			History:  hist,
		},
		player: player,
		src:    t.TempDir(),
	}
}

func (f *fixture) importPack(t *testing.T, name string) types.SoundPack {
	t.Helper()
	src := testutil.WriteZip(t, f.src, name+".zip", testutil.Files(map[string]string{
		"config.json": `{"name":"` + name + `"}`,
		"1.wav":       name,
	}))
	p, err := f.svc.ImportPack(context.Background(), src)
	require.NoError(t, err)
	return p
}

func TestImportPack_FirstBecomesActive(t *testing.T) {
	f := newFixture(t)

	first := f.importPack(t, "Alpha")
	f.importPack(t, "Beta")

	assert.Equal(t, first.ID, f.svc.Settings().Active())
	assert.Empty(t, f.player.starts, "importing never starts playback")
}

func TestImportPack_FailureLeavesSettings(t *testing.T) {
	f := newFixture(t)
	src := testutil.WriteZip(t, f.src, "bad.zip", testutil.Files(map[string]string{"x.wav": "x"}))

	_, err := f.svc.ImportPack(context.Background(), src)
	require.ErrorIs(t, err, packerr.ErrInvalidPack)
	assert.Nil(t, f.svc.Settings().ActivePackID)
}

func TestDeletePack(t *testing.T) {
	f := newFixture(t)
	a := f.importPack(t, "Alpha")
	b := f.importPack(t, "Beta")

	require.NoError(t, f.svc.DeletePack(context.Background(), b.ID))
	assert.Equal(t, a.ID, f.svc.Settings().Active(), "deleting another pack keeps the active one")

	require.NoError(t, f.svc.DeletePack(context.Background(), a.ID))
	assert.Nil(t, f.svc.Settings().ActivePackID)

	packs, err := f.svc.ListPacks()
	require.NoError(t, err)
	assert.Empty(t, packs)

	_, err = f.svc.Catalog.Get(a.ID)
	assert.ErrorIs(t, err, packerr.ErrNotFound)

	entries, err := f.svc.History.List(0)
	require.NoError(t, err)
	var deletes int
	for _, e := range entries {
		if e.Op == history.OpDelete {
			deletes++
		}
	}
	assert.Equal(t, 2, deletes)
}

func TestDeletePack_NotFound(t *testing.T) {
	f := newFixture(t)

	err := f.svc.DeletePack(context.Background(), "ghost")
	require.ErrorIs(t, err, packerr.ErrNotFound)
}

func TestListPacks_MergesCatalog(t *testing.T) {
	f := newFixture(t)
	f.importPack(t, "Beta")
	f.importPack(t, "alpha")

	packs, err := f.svc.ListPacks()
	require.NoError(t, err)
	require.Len(t, packs, 2)
	assert.Equal(t, "alpha", packs[0].Name)
	assert.Equal(t, "Beta", packs[1].Name)
	assert.Equal(t, "zip", packs[0].Format)
	assert.Positive(t, packs[0].SizeBytes)
	assert.False(t, packs[0].ImportedAt.IsZero())
}

func TestListPacks_PrunesStaleRecords(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.Catalog.Put(catalog.Record{ID: "vanished", Name: "Vanished"}))
	f.importPack(t, "Kept")

	_, err := f.svc.ListPacks()
	require.NoError(t, err)

	_, err = f.svc.Catalog.Get("vanished")
	assert.ErrorIs(t, err, packerr.ErrNotFound)
	_, err = f.svc.Catalog.Get("kept")
	assert.NoError(t, err)
}

func TestPackPath(t *testing.T) {
	f := newFixture(t)
	p := f.importPack(t, "Alpha")

	dir, err := f.svc.PackPath(p.ID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.svc.Store.Root(), "alpha"), dir)

	_, err = f.svc.PackPath("ghost")
	assert.ErrorIs(t, err, packerr.ErrNotFound)

	_, err = f.svc.PackPath("../etc")
	assert.ErrorIs(t, err, packerr.ErrInvalidPack)
}

func TestSetActivePack(t *testing.T) {
	f := newFixture(t)
	f.importPack(t, "Alpha")
	b := f.importPack(t, "Beta")

	require.NoError(t, f.svc.SetActivePack(context.Background(), b.ID))
	assert.Equal(t, b.ID, f.svc.Settings().Active())
	require.Len(t, f.player.starts, 1)
	assert.Equal(t, filepath.Join(f.svc.Store.Root(), b.ID), f.player.starts[0].Dir)
	assert.Equal(t, settings.DefaultVolume, f.player.starts[0].Volume)

	err := f.svc.SetActivePack(context.Background(), "ghost")
	require.ErrorIs(t, err, packerr.ErrNotFound)
	assert.Equal(t, b.ID, f.svc.Settings().Active())
}

func TestSetActivePack_PausedDoesNotStart(t *testing.T) {
	f := newFixture(t)
	p := f.importPack(t, "Alpha")
	paused, err := f.svc.TogglePause(context.Background())
	require.NoError(t, err)
	require.True(t, paused)

	require.NoError(t, f.svc.SetActivePack(context.Background(), p.ID))
	assert.Empty(t, f.player.starts)
}

func TestSetVolume(t *testing.T) {
	f := newFixture(t)
	f.importPack(t, "Alpha")

	tests := []struct {
		in, want float64
	}{
		{0.4, 0.4},
		{1.7, 1},
		{-2, 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		got, err := f.svc.SetVolume(context.Background(), tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.want, f.svc.Settings().Volume)
	}
	require.Len(t, f.player.starts, len(tests))
	assert.Equal(t, 0.4, f.player.starts[0].Volume)
}

func TestSetVolume_NoActivePack(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SetVolume(context.Background(), 0.2)
	require.NoError(t, err)
	assert.Empty(t, f.player.starts)
}

func TestTogglePause(t *testing.T) {
	f := newFixture(t)
	f.importPack(t, "Alpha")

	paused, err := f.svc.TogglePause(context.Background())
	require.NoError(t, err)
	assert.True(t, paused)
	assert.Equal(t, 1, f.player.stops)

	paused, err = f.svc.TogglePause(context.Background())
	require.NoError(t, err)
	assert.False(t, paused)
	assert.Len(t, f.player.starts, 1)
}

func TestStopPlayback(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.StopPlayback(context.Background()))
	assert.True(t, f.svc.Settings().Paused)
	assert.Equal(t, 1, f.player.stops)
}

func TestPlayerMissingIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.player.missing = true
	p := f.importPack(t, "Alpha")

	require.NoError(t, f.svc.SetActivePack(context.Background(), p.ID))
	_, err := f.svc.SetVolume(context.Background(), 0.9)
	require.NoError(t, err)
	_, err = f.svc.TogglePause(context.Background())
	require.NoError(t, err)
	require.NoError(t, f.svc.StopPlayback(context.Background()))
	assert.Equal(t, 0.9, f.svc.Settings().Volume)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	p := f.importPack(t, "Alpha")
	f.importPack(t, "Beta")

	st, err := f.svc.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Player.Installed)
	assert.Equal(t, 2, st.Packs)
	require.NotNil(t, st.Active)
	assert.Equal(t, p.ID, st.Active.ID)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.5, app.Clamp(0.5))
	assert.Equal(t, 1.0, app.Clamp(math.Inf(1)))
	assert.Equal(t, 0.0, app.Clamp(math.Inf(-1)))
}
