package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLog(t *testing.T) *Log {
	t.Helper()
	l, err := New(filepath.Join(t.TempDir(), "history"))
	require.NoError(t, err)
	return l
}

func TestNew_EmptyDir(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestRecordAndGet(t *testing.T) {
	l := newLog(t)

	e, err := l.Record(Entry{Op: OpImport, PackID: "clicky", Archive: "/tmp/clicky.zip", Format: "zip"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(e.ID, "import-"))
	assert.False(t, e.Timestamp.IsZero())

	got, err := l.Get(e.ID)
	require.NoError(t, err)
	assert.Equal(t, "clicky", got.PackID)
	assert.Equal(t, OpImport, got.Op)

	// No temp files left behind.
	files, err := os.ReadDir(l.Dir())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, e.ID+".json", files[0].Name())
}

func TestGet_Unknown(t *testing.T) {
	l := newLog(t)
	for _, id := range []string{"", "nope", "../escape", ".hidden"} {
		_, err := l.Get(id)
		assert.ErrorIs(t, err, ErrEntryNotFound, id)
	}
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	l := newLog(t)
	for _, op := range []Op{OpImport, OpImportFailed, OpDelete} {
		_, err := l.Record(Entry{Op: op})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	require.NoError(t, os.WriteFile(filepath.Join(l.Dir(), "garbage.json"), []byte("{"), 0o644))

	all, err := l.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, OpDelete, all[0].Op)
	assert.Equal(t, OpImport, all[2].Op)

	two, err := l.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestList_MissingDir(t *testing.T) {
	entries, err := newLog(t).List(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCleanup(t *testing.T) {
	l := newLog(t)
	fresh, err := l.Record(Entry{Op: OpImport, PackID: "fresh"})
	require.NoError(t, err)

	// Hand-write an old entry.
	old := Entry{ID: "delete-old", Op: OpDelete, Timestamp: time.Now().AddDate(0, 0, -40)}
	data, err := json.Marshal(old)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(l.Dir(), old.ID+".json"), data, 0o644))

	removed, err := l.Cleanup(30)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	entries, err := l.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, fresh.ID, entries[0].ID)

	removed, err = l.Cleanup(0)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestRecord_Concurrent(t *testing.T) {
	l := newLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Record(Entry{Op: OpImport})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := l.List(0)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}
