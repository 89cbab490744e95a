package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	SecurityConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetBackendURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type StorageConfig interface {
	GetRedisURL() string
	GetRedisPassword() string
	GetFlowStateTTL() time.Duration
	GetTokenStoreTTL() time.Duration
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Security
	Storage
}

func New() Config {
	return mainConfig{}
}
