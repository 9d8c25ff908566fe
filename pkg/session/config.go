package session

import "time"

// Store backends selectable through Config.Store.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds session configuration
type Config struct {
	CookieName    string `env:"SESSION_COOKIE_NAME" envDefault:"sid"`
	CookiePath    string `env:"SESSION_COOKIE_PATH" envDefault:"/"`
	CookieDomain  string `env:"SESSION_COOKIE_DOMAIN"`
	SecureCookies bool   `env:"SESSION_SECURE_COOKIES" envDefault:"false"`

	AnonIdleTimeout time.Duration `env:"SESSION_ANON_IDLE_TIMEOUT" envDefault:"30m"`
	AnonMaxLifetime time.Duration `env:"SESSION_ANON_MAX_LIFETIME" envDefault:"24h"`
	AuthIdleTimeout time.Duration `env:"SESSION_AUTH_IDLE_TIMEOUT" envDefault:"2h"`
	AuthMaxLifetime time.Duration `env:"SESSION_AUTH_MAX_LIFETIME" envDefault:"720h"`

	// ActivityUpdateThreshold is the minimum time between activity updates
	ActivityUpdateThreshold time.Duration `env:"SESSION_ACTIVITY_UPDATE_THRESHOLD" envDefault:"5m"`

	// CleanupInterval for expired sessions in the memory store (0 to disable)
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"5m"`

	// Store selects the backend: "memory" or "redis".
	Store string `env:"SESSION_STORE" envDefault:"memory"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		CookieName:              "sid",
		CookiePath:              "/",
		AnonIdleTimeout:         30 * time.Minute,
		AnonMaxLifetime:         24 * time.Hour,
		AuthIdleTimeout:         2 * time.Hour,
		AuthMaxLifetime:         30 * 24 * time.Hour,
		ActivityUpdateThreshold: 5 * time.Minute,
		CleanupInterval:         5 * time.Minute,
		Store:                   StoreMemory,
	}
}

// GetTimeouts returns idle and max lifetime based on session state
func (c Config) GetTimeouts(isAuthenticated bool) (idle, max time.Duration) {
	if isAuthenticated {
		return c.AuthIdleTimeout, c.AuthMaxLifetime
	}
	return c.AnonIdleTimeout, c.AnonMaxLifetime
}
