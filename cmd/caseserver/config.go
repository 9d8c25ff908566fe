package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrymomot/casekit/pkg/audit"
	"github.com/dmitrymomot/casekit/pkg/auth"
	"github.com/dmitrymomot/casekit/pkg/clientip"
	"github.com/dmitrymomot/casekit/pkg/httpserver"
	"github.com/dmitrymomot/casekit/pkg/logger"
	"github.com/dmitrymomot/casekit/pkg/session"
	"github.com/dmitrymomot/casekit/pkg/tenant"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"

	cacheLRU   = "lru"
	cacheRedis = "redis"
	cacheNone  = "none"

	sinkLog        = "log"
	sinkMongo      = "mongo"
	sinkOpenSearch = "opensearch"
)

// backendsConfig selects the implementation behind each collaborator.
type backendsConfig struct {
	TenantStore  string   `env:"TENANCY_STORE" envDefault:"memory"`
	SeedFile     string   `env:"TENANCY_SEED_FILE"`
	Cache        string   `env:"TENANCY_CACHE" envDefault:"lru"`
	AuditSinks   []string `env:"AUDIT_SINKS" envSeparator:"," envDefault:"log"`
	AuditHash    bool     `env:"AUDIT_HASH" envDefault:"true"`
	SessionToken string   `env:"SESSION_HEADER" envDefault:"X-Session-Token"`

	// Fingerprint binds sessions to the client that created them;
	// FingerprintIP adds the client address to the binding.
	Fingerprint   bool `env:"SESSION_FINGERPRINT" envDefault:"true"`
	FingerprintIP bool `env:"SESSION_FINGERPRINT_IP" envDefault:"false"`
}

type appConfig struct {
	Log      logger.Config
	HTTP     httpserver.Config
	Tenancy  tenant.Config
	Session  session.Config
	Auth     auth.Config
	ClientIP clientip.Config
	Audit    audit.Options
	Backends backendsConfig
}

var errUnknownBackend = errors.New("unknown backend")

func (c appConfig) Validate() error {
	var errs []error
	check := func(name, value string, allowed ...string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%w: %s=%q, want one of %v", errUnknownBackend, name, value, allowed))
		}
	}

	check("TENANCY_STORE", c.Backends.TenantStore, storeMemory, storePostgres)
	check("TENANCY_CACHE", c.Backends.Cache, cacheLRU, cacheRedis, cacheNone)
	check("SESSION_STORE", c.Session.Store, session.StoreMemory, session.StoreRedis)
	for _, sink := range c.Backends.AuditSinks {
		check("AUDIT_SINKS", sink, sinkLog, sinkMongo, sinkOpenSearch)
	}
	if len(c.Auth.Secret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes"))
	}
	return errors.Join(errs...)
}

func (c appConfig) needsPostgres() bool { return c.Backends.TenantStore == storePostgres }

func (c appConfig) needsRedis() bool {
	return c.Backends.Cache == cacheRedis || c.Session.Store == session.StoreRedis
}

func (c appConfig) needsSink(name string) bool { return slices.Contains(c.Backends.AuditSinks, name) }
