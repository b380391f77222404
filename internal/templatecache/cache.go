// Package templatecache provides storage backends for parsed OCG
// template JSON, keyed by template type.
package templatecache

import (
	"context"
	"sync"
)

// Cache is the template cache contract. Get returns nil on a miss;
// entries live until explicitly invalidated (force reload or template
// save), there is no TTL.
type Cache interface {
	Get(ctx context.Context, templateType string) ([]byte, error)
	Set(ctx context.Context, templateType string, data []byte) error
	Invalidate(ctx context.Context, templateType string) error
}

// MemoryCache is the default in-process backend.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string][]byte)}
}

func (c *MemoryCache) Get(_ context.Context, templateType string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.entries[templateType]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (c *MemoryCache) Set(_ context.Context, templateType string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	c.entries[templateType] = stored
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, templateType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, templateType)
	return nil
}
