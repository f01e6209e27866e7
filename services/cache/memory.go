package cache

import (
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemoryCacheService is an in-process CacheService used when no memcached
// address is configured. Blocks then only protect the local process.
type MemoryCacheService struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryCacheService creates an empty in-process cache
func NewMemoryCacheService() *MemoryCacheService {
	return &MemoryCacheService{
		entries: make(map[string]memoryEntry),
	}
}

// Get retrieves a value, reporting a miss the same way memcached does
func (s *MemoryCacheService) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, memcache.ErrCacheMiss
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		delete(s.entries, key)
		return nil, memcache.ErrCacheMiss
	}
	return entry.value, nil
}

// Set stores a value with an expiration time; zero means no expiry
func (s *MemoryCacheService) Set(key string, value []byte, expiration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: value}
	if expiration > 0 {
		entry.expires = time.Now().Add(expiration)
	}
	s.entries[key] = entry
	return nil
}

// Delete removes a value
func (s *MemoryCacheService) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
