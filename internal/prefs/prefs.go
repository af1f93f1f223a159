// Package prefs persists small user and per-repository settings: the
// remote repository id bound to each root, whether its initial upload
// completed, and the global upload toggle.
package prefs

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Keys.
const (
	// UploadPreferencesKey holds the global upload toggle (bool).
	UploadPreferencesKey = "uploadPreferences"

	repoSettingsPrefix = "settingsFile"
)

// Store is a key/value store for JSON-encodable values.
type Store interface {
	// Get decodes the value stored at key into v. It reports false, with
	// v untouched, when the key is absent.
	Get(key string, v any) (bool, error)
	Set(key string, v any) error
	Close() error
}

// RepoSettings is what is remembered about one repository root.
type RepoSettings struct {
	RepoID string `json:"repoId"`
	// Uploaded is true once the initial bulk upload completed.
	Uploaded bool `json:"uploaded"`
}

// RepoSettingsKey returns the key the settings for root are stored under.
func RepoSettingsKey(root string) string {
	return repoSettingsPrefix + root
}

// LoadRepoSettings returns the settings for root. The zero value means the
// root was never synced.
func LoadRepoSettings(s Store, root string) (RepoSettings, error) {
	var rs RepoSettings
	if _, err := s.Get(RepoSettingsKey(root), &rs); err != nil {
		return RepoSettings{}, err
	}
	return rs, nil
}

// SaveRepoSettings stores the settings for root.
func SaveRepoSettings(s Store, root string, rs RepoSettings) error {
	return s.Set(RepoSettingsKey(root), rs)
}

// UploadsEnabled reports the global upload toggle. Uploads are enabled
// until explicitly turned off.
func UploadsEnabled(s Store) (bool, error) {
	enabled := true
	if _, err := s.Get(UploadPreferencesKey, &enabled); err != nil {
		return false, err
	}
	return enabled, nil
}

// SetUploadsEnabled sets the global upload toggle.
func SetUploadsEnabled(s Store, enabled bool) error {
	return s.Set(UploadPreferencesKey, enabled)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (m *MemoryStore) Get(key string, v any) (bool, error) {
	m.mu.RLock()
	data, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %q: %w", key, err)
	}
	return true, nil
}

func (m *MemoryStore) Set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	m.mu.Lock()
	m.values[key] = data
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }
