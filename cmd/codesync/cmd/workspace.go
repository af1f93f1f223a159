package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"

	"github.com/Aman-CERP/codesync/internal/config"
	serrors "github.com/Aman-CERP/codesync/internal/errors"
	"github.com/Aman-CERP/codesync/internal/lock"
	"github.com/Aman-CERP/codesync/internal/prefs"
)

// workspace is what every root-scoped command needs: the resolved root,
// its merged configuration and the preference store.
type workspace struct {
	root  string
	cfg   *config.Config
	prefs *prefs.SQLiteStore
	lock  *lock.FileLock
}

// resolveRoot returns dir made absolute, or the project root above the
// working directory when dir is empty.
func resolveRoot(dir string) (string, error) {
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		return config.FindProjectRoot(cwd)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", serrors.New(serrors.ErrCodeInvalidPath, "cannot resolve directory", err).WithDetail("dir", dir)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return "", serrors.New(serrors.ErrCodeInvalidPath, "not a directory", err).WithDetail("dir", abs)
	}
	return abs, nil
}

func openWorkspace(dir string) (*workspace, error) {
	root, err := resolveRoot(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, serrors.ConfigError("failed to load config", err).WithDetail("root", root)
	}
	store, err := openPrefs()
	if err != nil {
		return nil, err
	}
	return &workspace{root: root, cfg: cfg, prefs: store}, nil
}

func openPrefs() (*prefs.SQLiteStore, error) {
	return prefs.OpenSQLite(filepath.Join(config.DataDir(), prefs.DefaultFileName))
}

// acquire takes the per-root run lock, failing when another process holds it.
func (w *workspace) acquire() error {
	l := lock.ForRoot(config.DataDir(), w.root)
	if err := l.Acquire(w.root); err != nil {
		return err
	}
	w.lock = l
	return nil
}

func (w *workspace) Close() error {
	var err error
	if w.lock != nil {
		err = w.lock.Unlock()
	}
	return multierr.Append(err, w.prefs.Close())
}
