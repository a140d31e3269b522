package storage

import (
	"context"
	"sync"
)

// InMemoryBackend is a thread-safe Backend that lives as long as the process.
type InMemoryBackend struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewInMemoryBackend creates an empty in-memory backend.
func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{items: make(map[string][]byte)}
}

func (c *InMemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	value, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (c *InMemoryBackend) Set(_ context.Context, key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = stored
	return nil
}

func (c *InMemoryBackend) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

func (c *InMemoryBackend) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[key]
	return ok, nil
}

func (c *InMemoryBackend) Flush(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string][]byte)
	return nil
}

// Close holds no resources to release; entries stay readable afterwards.
func (c *InMemoryBackend) Close() error {
	return nil
}

// Snapshot copies every stored entry. Tests use it to compare store state.
func (c *InMemoryBackend) Snapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]string, len(c.items))
	for k, v := range c.items {
		out[k] = string(v)
	}
	return out
}
