package orchestrator

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/codesync/internal/config"
	"github.com/Aman-CERP/codesync/internal/prefs"
)

func countingFactory(built *[]string) Factory {
	return func(root string) (*Orchestrator, error) {
		*built = append(*built, root)
		return New(Deps{}, Config{}), nil
	}
}

func TestManager_ReusesOrchestratorPerRoot(t *testing.T) {
	var built []string
	m, err := NewManager(2, countingFactory(&built))
	require.NoError(t, err)

	a1, err := m.Get(filepath.FromSlash("/work/a"))
	require.NoError(t, err)
	a2, err := m.Get(filepath.FromSlash("/work/a/"))
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.Len(t, built, 1)
	assert.Equal(t, 1, m.Len())
}

func TestManager_EvictsLeastRecentlyUsed(t *testing.T) {
	var built []string
	m, err := NewManager(2, countingFactory(&built))
	require.NoError(t, err)

	a := filepath.FromSlash("/work/a")
	b := filepath.FromSlash("/work/b")
	c := filepath.FromSlash("/work/c")

	first, err := m.Get(a)
	require.NoError(t, err)
	_, err = m.Get(b)
	require.NoError(t, err)
	_, err = m.Get(a) // a is now the most recent
	require.NoError(t, err)
	_, err = m.Get(c)
	require.NoError(t, err)

	assert.Equal(t, []string{a, c}, m.Roots())

	again, err := m.Get(a)
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = m.Get(b)
	require.NoError(t, err)
	assert.Equal(t, []string{a, b, c, b}, built)
}

func TestManager_FactoryErrorIsNotCached(t *testing.T) {
	calls := 0
	m, err := NewManager(0, func(string) (*Orchestrator, error) {
		calls++
		return nil, errors.New("boom")
	})
	require.NoError(t, err)

	_, err = m.Get("/x")
	require.Error(t, err)
	_, err = m.Get("/x")
	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, m.Len())
}

func TestManager_RemoveAndClose(t *testing.T) {
	var built []string
	m, err := NewManager(4, countingFactory(&built))
	require.NoError(t, err)

	_, _ = m.Get("/a")
	_, _ = m.Get("/b")
	m.Remove("/a")
	assert.Equal(t, 1, m.Len())

	m.Close()
	assert.Equal(t, 0, m.Len())
}

func TestPrefsGate(t *testing.T) {
	store := prefs.NewMemoryStore()
	cfg := config.NewConfig()
	gate := PrefsGate{Config: cfg, Prefs: store}

	assert.True(t, gate.UploadsAllowed(), "uploads default on")

	require.NoError(t, prefs.SetUploadsEnabled(store, false))
	assert.False(t, gate.UploadsAllowed())

	require.NoError(t, prefs.SetUploadsEnabled(store, true))
	cfg.Remote.Offline = true
	assert.False(t, gate.UploadsAllowed())

	cfg.Remote.Offline = false
	cfg.Remote.Mode = config.ModeRemote
	assert.False(t, gate.UploadsAllowed())

	assert.True(t, PrefsGate{}.UploadsAllowed())
}

func TestBuilder_BuildsFromConfig(t *testing.T) {
	cfg := config.NewConfig()
	b, err := NewBuilder(cfg, prefs.NewMemoryStore())
	require.NoError(t, err)
	defer b.Close()

	o, err := b.Build(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Idle, o.State())
	assert.Equal(t, cfg.Sync.Interval, o.cfg.Interval)
	assert.NotNil(t, o.deps.Watcher)

	cfg.Sync.Fingerprint = "sha1"
	_, err = b.Build(t.TempDir())
	assert.Error(t, err)

	_, err = NewBuilder(&config.Config{Remote: config.RemoteConfig{Endpoint: "not a url"}}, nil)
	assert.Error(t, err)
}
