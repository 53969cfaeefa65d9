package kvstore

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory KVStore, used when no data directory is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]json.RawMessage)}
}

// KVGet returns a copy of the value under key, or nil when unset.
func (s *MemoryStore) KVGet(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

// KVSet stores a JSON value under key.
func (s *MemoryStore) KVSet(key string, value []byte) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if !json.Valid(value) {
		return fmt.Errorf("value for key %s is not valid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append(json.RawMessage(nil), value...)
	return nil
}

// KVDelete removes key.
func (s *MemoryStore) KVDelete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// KVList returns every key in sorted order.
func (s *MemoryStore) KVList() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.values), nil
}
