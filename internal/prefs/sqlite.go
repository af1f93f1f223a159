package prefs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	serrors "github.com/Aman-CERP/codesync/internal/errors"
)

// DefaultFileName is the preferences database inside the data directory.
const DefaultFileName = "prefs.db"

// SQLiteStore keeps preferences in a SQLite database shared by every
// codesync process on the machine.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	path   string
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the preferences database at path.
// An empty path opens an in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, serrors.New(serrors.ErrCodeFilePermission, "cannot create preferences directory", err).
				WithDetail("path", path)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodePrefsCorrupt, "failed to open preferences", err).
			WithDetail("path", path)
	}

	// Single writer; several processes coordinate through WAL and busy_timeout.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, serrors.New(serrors.ErrCodePrefsCorrupt, "failed to configure preferences", err).
				WithDetail("pragma", pragma)
		}
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS prefs (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, serrors.New(serrors.ErrCodePrefsCorrupt, "failed to initialize preferences", err).
			WithDetail("path", path).
			WithSuggestion("Delete the preferences file; repositories will be re-registered on next sync")
	}

	slog.Debug("preferences opened", slog.String("path", path))
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file ("" for in-memory).
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Get(key string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, fmt.Errorf("preferences store is closed")
	}

	var raw string
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read preference %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, serrors.New(serrors.ErrCodePrefsCorrupt, "preference value is not valid JSON", err).
			WithDetail("key", key)
	}
	return true, nil
}

func (s *SQLiteStore) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode preference %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("preferences store is closed")
	}

	_, err = s.db.Exec(`INSERT INTO prefs (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, string(data))
	if err != nil {
		return fmt.Errorf("write preference %q: %w", key, err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database. It is idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
