package keystore

import (
	"iter"
	"slices"
	"sync"
)

// Memory is a Storage that lives only as long as the value does.
type Memory struct {
	mu    sync.RWMutex
	names []string // insertion order
	keys  map[string][]byte
}

// NewMemory returns an empty in-memory key storage.
func NewMemory() *Memory {
	return &Memory{keys: make(map[string][]byte)}
}

// Load yields a snapshot of the stored keys in insertion order.
func (m *Memory) Load() iter.Seq2[string, []byte] {
	return func(yield func(string, []byte) bool) {
		m.mu.RLock()
		names := slices.Clone(m.names)
		keys := make([][]byte, len(names))
		for i, name := range names {
			keys[i] = m.keys[name]
		}
		m.mu.RUnlock()

		for i, name := range names {
			if !yield(name, keys[i]) {
				return
			}
		}
	}
}

// Save stores privateKey under name. It never fails.
func (m *Memory) Save(privateKey []byte, name string) error {
	if name == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[name]; !ok {
		m.names = append(m.names, name)
	}
	m.keys[name] = slices.Clone(privateKey)
	return nil
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.names)
}
