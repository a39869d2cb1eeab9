package store

import (
	"context"
	"sync"
	"time"
)

// MemoryBlobStore is an in-process blob store
type MemoryBlobStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{
		data: make(map[string][]byte),
	}
}

// Get returns a copy of the blob stored under key
func (ms *MemoryBlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	data, ok := ms.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

// Put stores a copy of data under key
func (ms *MemoryBlobStore) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return ErrInvalidKey
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.data[key] = append([]byte(nil), data...)
	return nil
}

// Delete removes the blob stored under key
func (ms *MemoryBlobStore) Delete(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.data, key)
	return nil
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache with per-entry expiry
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns the entry for key unless it has expired
func (mc *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !mc.now().Before(entry.expiresAt) {
		delete(mc.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), entry.data...), true, nil
}

// Set stores data under key; a zero ttl never expires
func (mc *MemoryCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry := cacheEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		entry.expiresAt = mc.now().Add(ttl)
	}
	mc.entries[key] = entry
	return nil
}
