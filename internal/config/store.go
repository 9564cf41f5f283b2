package config

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by Load when no record has been saved.
var ErrNotFound = errors.New("config: no stored record")

// Store loads and saves the configuration record.
type Store interface {
	Load() (Configuration, error)
	Save(Configuration) error
}

// MemStore keeps the record in memory. Used by tests and by the daemon when
// no database path is configured.
type MemStore struct {
	mu     sync.Mutex
	data   []byte
	Saves  int
	SaveFn func(Configuration) error // optional hook, called before storing
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Load decodes the stored record.
func (m *MemStore) Load() (Configuration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return Configuration{}, ErrNotFound
	}
	return Decode(m.data)
}

// Save encodes and stores c.
func (m *MemStore) Save(c Configuration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveFn != nil {
		if err := m.SaveFn(c); err != nil {
			return err
		}
	}
	m.data = Encode(c)
	m.Saves++
	return nil
}
