package cache

import (
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheService(t *testing.T) {
	s := NewMemoryCacheService()

	_, err := s.Get("missing")
	assert.Equal(t, memcache.ErrCacheMiss, err, "misses mirror the memcached sentinel")

	require.NoError(t, s.Set("key", []byte("value"), 0))
	got, err := s.Get("key")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), got)

	require.NoError(t, s.Delete("key"))
	_, err = s.Get("key")
	assert.Equal(t, memcache.ErrCacheMiss, err)
}

func TestMemoryCacheServiceExpiry(t *testing.T) {
	s := NewMemoryCacheService()
	require.NoError(t, s.Set("key", []byte("value"), 10*time.Millisecond))

	_, err := s.Get("key")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = s.Get("key")
	assert.Equal(t, memcache.ErrCacheMiss, err)
}
