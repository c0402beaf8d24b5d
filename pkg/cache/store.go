package cache

import (
	"strings"
	"sync"
	"time"
)

// Store is the persistence contract behind the cache. Keys begin with
// their namespace, so prefix operations match on the key itself.
type Store interface {
	Get(key string) (payload []byte, expiresAt time.Time, ok bool, err error)
	Set(key string, payload []byte, expiresAt time.Time) error
	Delete(key string) error
	DeletePrefix(prefix string) (int, error)
	Clear() (int, error)
	Close() error
}

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryStore is the default in-process store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Get retrieves an entry by key.
func (s *MemoryStore) Get(key string) ([]byte, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return entry.payload, entry.expiresAt, true, nil
}

// Set stores an entry, replacing any previous value for the key.
func (s *MemoryStore) Set(key string, payload []byte, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(payload))
	copy(stored, payload)
	s.entries[key] = memoryEntry{payload: stored, expiresAt: expiresAt}
	return nil
}

// Delete removes an entry by key.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// DeletePrefix removes all entries whose key starts with the prefix and
// returns the number removed.
func (s *MemoryStore) DeletePrefix(prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Clear removes all entries and returns the number removed.
func (s *MemoryStore) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.entries)
	s.entries = make(map[string]memoryEntry)
	return removed, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
