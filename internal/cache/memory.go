package cache

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryProvider implements Provider on an in-process LRU. It serves
// single-instance deployments where a shared Valkey is not worth running.
type MemoryProvider struct {
	mu    sync.Mutex
	items *lru.Cache[string, memoryItem]
}

// NewMemoryProvider creates an LRU-backed provider holding up to size keys.
func NewMemoryProvider(size int) (*MemoryProvider, error) {
	if size <= 0 {
		size = 4096
	}
	items, err := lru.New[string, memoryItem](size)
	if err != nil {
		return nil, err
	}
	return &MemoryProvider{items: items}, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when absent or expired.
func (p *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item, ok := p.items.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		p.items.Remove(key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), item.value...), nil
}

// Set stores bytes with an optional TTL; zero TTL means no expiry.
func (p *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	p.items.Add(key, memoryItem{value: append([]byte(nil), value...), expiresAt: expires})
	return nil
}

// Del removes a key.
func (p *MemoryProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items.Remove(key)
	return nil
}

// Close releases nothing for the in-process provider.
func (p *MemoryProvider) Close() error { return nil }
