package orchestrator

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxRoots is how many roots a Manager keeps open at once.
const DefaultMaxRoots = 8

// Factory builds the orchestrator for a root.
type Factory func(root string) (*Orchestrator, error)

// Manager hands out one Orchestrator per repository root. When more than
// size roots are open the least recently used one is closed.
type Manager struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *Orchestrator]
	factory Factory
}

// NewManager creates a Manager holding at most size orchestrators.
func NewManager(size int, factory Factory) (*Manager, error) {
	if size <= 0 {
		size = DefaultMaxRoots
	}
	cache, err := lru.NewWithEvict(size, func(root string, o *Orchestrator) {
		slog.Debug("closing orchestrator", slog.String("root", root))
		o.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("create orchestrator cache: %w", err)
	}
	return &Manager{cache: cache, factory: factory}, nil
}

// Get returns the orchestrator for root, creating it on first use.
func (m *Manager) Get(root string) (*Orchestrator, error) {
	key, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	key = filepath.Clean(key)

	m.mu.Lock()
	defer m.mu.Unlock()

	if o, ok := m.cache.Get(key); ok {
		return o, nil
	}
	o, err := m.factory(key)
	if err != nil {
		return nil, err
	}
	m.cache.Add(key, o)
	return o, nil
}

// Remove closes and forgets the orchestrator for root.
func (m *Manager) Remove(root string) {
	key, err := filepath.Abs(root)
	if err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(filepath.Clean(key))
}

// Roots returns the open roots, oldest first.
func (m *Manager) Roots() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Keys()
}

// Len returns the number of open orchestrators.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

// Close closes every orchestrator.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Purge()
}
