package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bradfitz/gomemcache/memcache"
)

// ErrNotFound is returned by Backend.Get when no value exists for the key.
// Any other error from a backend is treated by RenderCache as a miss too;
// caching is best-effort only.
var ErrNotFound = errors.New("cache: key not found")

// Backend is the pluggable key-value store behind RenderCache. Eviction,
// sizing and TTL policy are entirely the backend's concern. Implementations
// must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryBackend is a process-local Backend. It never evicts; it is meant for
// single-instance deployments and tests.
type MemoryBackend struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{m: make(map[string]string)}
}

func (b *MemoryBackend) Get(ctx context.Context, key string) (string, error) {
	b.mu.RLock()
	v, ok := b.m[key]
	b.mu.RUnlock()
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key, value string) error {
	b.mu.Lock()
	b.m[key] = value
	b.mu.Unlock()
	return nil
}

// Len returns the number of cached entries. Exposed for the status endpoint.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.m)
}

// MemcacheBackend stores rendered pages in memcached, which also owns
// expiry and eviction.
type MemcacheBackend struct {
	client *memcache.Client
}

// NewMemcacheBackend creates a backend talking to the given memcached
// server addresses.
func NewMemcacheBackend(addrs ...string) *MemcacheBackend {
	return &MemcacheBackend{client: memcache.New(addrs...)}
}

func (b *MemcacheBackend) Get(ctx context.Context, key string) (string, error) {
	item, err := b.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("memcache get: %w", err)
	}
	return string(item.Value), nil
}

func (b *MemcacheBackend) Set(ctx context.Context, key, value string) error {
	if err := b.client.Set(&memcache.Item{Key: key, Value: []byte(value)}); err != nil {
		return fmt.Errorf("memcache set: %w", err)
	}
	return nil
}
