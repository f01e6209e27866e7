package cache

import "time"

// CacheService represents a shared key-value store with expiry; the fetcher
// keeps rate-limit blocks here so every process backs off the same host.
type CacheService interface {
	// Get retrieves a value from the cache
	Get(key string) ([]byte, error)

	// Set stores a value in the cache with an expiration time
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes a value from the cache
	Delete(key string) error
}
