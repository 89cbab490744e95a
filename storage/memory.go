package storage

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Memory implements Storage using ttlcache. A zero ttl keeps entries until deleted.
type Memory struct {
	cache *ttlcache.Cache[string, string]
}

var _ Storage = (*Memory)(nil)

func NewMemory(ttl time.Duration) *Memory {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)

	// Start the cleanup process
	go cache.Start()

	return &Memory{cache: cache}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	item := m.cache.Get(key)
	if item == nil {
		return "", ErrNotFound
	}
	return item.Value(), nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.cache.Set(key, value, ttlcache.DefaultTTL)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

// Close stops the cleanup goroutine.
func (m *Memory) Close() error {
	m.cache.Stop()
	return nil
}
