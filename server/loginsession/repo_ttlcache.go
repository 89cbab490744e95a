package loginsession

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog/log"
)

// TTLRepo evicts browsers idle for longer than the configured timeout. Eviction
// closes the browser's session controller.
type TTLRepo struct {
	mu        sync.Mutex
	cache     *ttlcache.Cache[string, *Session]
	factory   Factory
	closeOnce sync.Once
}

var _ Repo = (*TTLRepo)(nil)

func NewTTLRepo(idleTimeout time.Duration, factory Factory) *TTLRepo {
	cache := ttlcache.New[string, *Session](
		ttlcache.WithTTL[string, *Session](idleTimeout),
	)
	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *Session]) {
		item.Value().Controller.Close()
		log.Debug().Str("browser", item.Key()).Int("reason", int(reason)).Msg("Browser session closed")
	})
	go cache.Start()

	return &TTLRepo{cache: cache, factory: factory}
}

// GetOrCreate returns the browser's session, refreshing its idle timeout. A
// different user agent invalidates the existing session.
func (r *TTLRepo) GetOrCreate(browserID, userAgent string) (*Session, error) {
	if browserID == "" {
		return nil, fmt.Errorf("[loginsession GetOrCreate] browserID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if item := r.cache.Get(browserID); item != nil {
		if item.Value().UserAgent == userAgent {
			return item.Value(), nil
		}
		r.cache.Delete(browserID)
	}

	s, err := r.factory(browserID, userAgent)
	if err != nil {
		return nil, fmt.Errorf("[loginsession GetOrCreate] %w", err)
	}
	r.cache.Set(browserID, s, ttlcache.DefaultTTL)
	return s, nil
}

func (r *TTLRepo) Delete(browserID string) {
	r.cache.Delete(browserID)
}

func (r *TTLRepo) Len() int {
	return r.cache.Len()
}

// Close tears every session down and stops the expiry loop.
func (r *TTLRepo) Close() {
	r.closeOnce.Do(func() {
		r.cache.DeleteAll()
		r.cache.Stop()
	})
}
