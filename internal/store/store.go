// Package store provides the durable key-value slots the game keeps its
// credential, provider choice and world snapshot in.
package store

import (
	"fmt"
	"sync"
)

// Keys shared by the application.
const (
	KeyAPIKey      = "infinitePrairie_apiKey"
	KeyAPIProvider = "infinitePrairie_apiProvider"
)

// KeyValue is a string key-value store. Get reports ok=false for absent keys.
type KeyValue interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
	Close() error
}

// Open returns the store selected by kind ("file" or "sqlite").
func Open(kind, saveDir, dbPath string) (KeyValue, error) {
	switch kind {
	case "", "file":
		return NewFileStore(saveDir)
	case "sqlite":
		return OpenSQLite(dbPath)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", kind)
	}
}

// MemoryStore keeps values in a map. It is used in tests and as a fallback
// when nothing durable is wanted.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
