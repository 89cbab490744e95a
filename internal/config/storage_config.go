package config

import "time"

type Storage struct{}

var _ StorageConfig = Storage{}

// GetRedisURL returns the Redis address; empty selects the in-memory storage.
func (Storage) GetRedisURL() string {
	return GetEnv("REDIS_URL", "")
}

func (Storage) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

// GetFlowStateTTL bounds the lifetime of the session-scoped values (pending redirect, CSRF state).
func (Storage) GetFlowStateTTL() time.Duration {
	return GetEnvDuration("FLOW_STATE_TTL", 30*time.Minute)
}

// GetTokenStoreTTL bounds the lifetime of the local-scope values (the encrypted token record).
func (Storage) GetTokenStoreTTL() time.Duration {
	return GetEnvDuration("TOKEN_STORE_TTL", 30*24*time.Hour)
}
