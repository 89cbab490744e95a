package config

import "time"

type SecurityConfig interface {
	GetTokenKeySecret() string
	GetCookieSecret() string
	GetBrowserIdleTimeout() time.Duration
}

type Security struct{}

var _ SecurityConfig = Security{}

// GetTokenKeySecret is the HKDF input keying material for the token store.
func (Security) GetTokenKeySecret() string {
	return GetEnv("TOKEN_KEY_SECRET", "")
}

// GetCookieSecret signs the browser cookie.
func (Security) GetCookieSecret() string {
	return GetEnv("COOKIE_SECRET", "")
}

// GetBrowserIdleTimeout is how long a browser's session controller is kept without requests.
func (Security) GetBrowserIdleTimeout() time.Duration {
	return GetEnvDuration("BROWSER_IDLE_TIMEOUT", 2*time.Hour)
}
