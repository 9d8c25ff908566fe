package tenant

import "time"

// Config is the env-driven tenancy configuration.
type Config struct {
	Mode          Mode          `env:"TENANCY_MODE" envDefault:"multi"`
	DefaultOrg    string        `env:"TENANCY_DEFAULT_ORG" envDefault:"DEFAULT"`
	PathPrefix    string        `env:"TENANCY_PATH_PREFIX" envDefault:"/tenant/"`
	CacheSize     int           `env:"TENANCY_CACHE_SIZE" envDefault:"1000"`
	CacheTTL      time.Duration `env:"TENANCY_CACHE_TTL" envDefault:"5m"`
	SkipPaths     []string      `env:"TENANCY_SKIP_PATHS" envSeparator:"," envDefault:"/healthz,/readyz,/metrics"`
	OptionalPaths []string      `env:"TENANCY_OPTIONAL_PATHS" envSeparator:","`
}

// ResolverOptions returns the resolver options described by c.
func (c Config) ResolverOptions() []ResolverOption {
	return []ResolverOption{
		WithPathPrefix(c.PathPrefix),
		WithDefaultCode(c.DefaultOrg),
	}
}

// MiddlewareOptions returns the middleware options described by c.
func (c Config) MiddlewareOptions() []Option {
	opts := []Option{WithSkipPaths(c.SkipPaths...)}
	if len(c.OptionalPaths) > 0 {
		opts = append(opts, WithOptionalPaths(c.OptionalPaths...))
	}
	return opts
}
