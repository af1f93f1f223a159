package prefs

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/codesync/internal/errors"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": db,
	}
}

func TestStore_GetSet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var got RepoSettings
			ok, err := s.Get("missing", &got)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set("k", RepoSettings{RepoID: "r1"}))
			require.NoError(t, s.Set("k", RepoSettings{RepoID: "r2", Uploaded: true}))

			ok, err = s.Get("k", &got)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, RepoSettings{RepoID: "r2", Uploaded: true}, got)
		})
	}
}

func TestRepoSettings_RoundTripPerRoot(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			rs, err := LoadRepoSettings(s, "/a")
			require.NoError(t, err)
			assert.Zero(t, rs)

			require.NoError(t, SaveRepoSettings(s, "/a", RepoSettings{RepoID: "ra", Uploaded: true}))
			require.NoError(t, SaveRepoSettings(s, "/b", RepoSettings{RepoID: "rb"}))

			rs, err = LoadRepoSettings(s, "/a")
			require.NoError(t, err)
			assert.Equal(t, RepoSettings{RepoID: "ra", Uploaded: true}, rs)

			rs, err = LoadRepoSettings(s, "/b")
			require.NoError(t, err)
			assert.Equal(t, "rb", rs.RepoID)
			assert.False(t, rs.Uploaded)
		})
	}
}

func TestRepoSettings_WireFormat(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, SaveRepoSettings(s, "/repo", RepoSettings{RepoID: "x", Uploaded: true}))

	assert.Equal(t, "settingsFile/repo", RepoSettingsKey("/repo"))
	assert.JSONEq(t, `{"repoId":"x","uploaded":true}`, string(s.values["settingsFile/repo"]))
}

func TestUploadsEnabled_DefaultsOn(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			on, err := UploadsEnabled(s)
			require.NoError(t, err)
			assert.True(t, on)

			require.NoError(t, SetUploadsEnabled(s, false))
			on, err = UploadsEnabled(s)
			require.NoError(t, err)
			assert.False(t, on)
		})
	}
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, SaveRepoSettings(s, "/r", RepoSettings{RepoID: "id"}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	rs, err := LoadRepoSettings(s, "/r")
	require.NoError(t, err)
	assert.Equal(t, "id", rs.RepoID)
	assert.Equal(t, path, s.Path())
}

func TestSQLiteStore_CorruptValue(t *testing.T) {
	s, err := OpenSQLite("")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO prefs (key, value) VALUES ('bad', '{')`)
	require.NoError(t, err)

	var v RepoSettings
	_, err = s.Get("bad", &v)
	assert.Equal(t, serrors.ErrCodePrefsCorrupt, serrors.GetCode(err))
}

func TestSQLiteStore_ClosedStore(t *testing.T) {
	s, err := OpenSQLite("")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	var v bool
	_, err = s.Get("k", &v)
	assert.Error(t, err)
	assert.Error(t, s.Set("k", true))
}

func TestSQLiteStore_ConcurrentWriters(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "prefs.db"))
	require.NoError(t, err)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, SetUploadsEnabled(s, i%2 == 0))
		}()
	}
	wg.Wait()

	_, err = UploadsEnabled(s)
	assert.NoError(t, err)
}
