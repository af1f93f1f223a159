// Package lock keeps two codesync processes from syncing the same
// repository root at the same time.
package lock

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"golang.org/x/crypto/blake2b"

	serrors "github.com/Aman-CERP/codesync/internal/errors"
)

// FileLock provides cross-process file locking using gofrs/flock.
// Works on all platforms (Unix, Linux, macOS, Windows).
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// New creates a lock backed by the file at path.
func New(path string) *FileLock {
	return &FileLock{
		path:  path,
		flock: flock.New(path),
	}
}

// ForRoot returns the lock guarding root. Lock files live under
// <dataDir>/locks, named by a hash of the root.
func ForRoot(dataDir, root string) *FileLock {
	sum := blake2b.Sum256([]byte(filepath.Clean(root)))
	name := hex.EncodeToString(sum[:8]) + ".lock"
	return New(filepath.Join(dataDir, "locks", name))
}

// Lock acquires an exclusive lock, blocking until it is available.
func (l *FileLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.locked = true
	return nil
}

// TryLock attempts to acquire the lock without blocking.
// Returns true if the lock was acquired, false if another process holds it.
func (l *FileLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Acquire is TryLock that reports a held lock as ErrCodeLockHeld.
func (l *FileLock) Acquire(root string) error {
	ok, err := l.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		return serrors.New(serrors.ErrCodeLockHeld, "another codesync process is syncing this directory", nil).
			WithDetail("root", root).
			WithDetail("lock", l.path).
			WithSuggestion("Wait for the other process to finish, or stop it")
	}
	return nil
}

// Unlock releases the lock. Safe to call multiple times or on an unlocked FileLock.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *FileLock) Path() string {
	return l.path
}

// IsLocked returns true if the lock is currently held.
func (l *FileLock) IsLocked() bool {
	return l.locked
}
