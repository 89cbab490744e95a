package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis implements Storage on a shared Redis client. Keys are prefixed so that
// several scopes (and applications) can share one database.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ Storage = (*Redis)(nil)

func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// DialRedis connects and pings; a failed ping is returned so callers can fall back to memory.
func DialRedis(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("[storage DialRedis] ping %s: %w", addr, err)
	}
	return client, nil
}

func (r *Redis) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.redisKey(key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("Redis GET failed")
		return "", fmt.Errorf("[storage Redis.Get] %w", err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.redisKey(key), value, r.ttl).Err(); err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Dur("expiration", r.ttl).
			Msg("Redis SET failed")
		return fmt.Errorf("[storage Redis.Set] %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("[storage Redis.Delete] %w", err)
	}
	return nil
}
