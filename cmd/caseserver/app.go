package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrymomot/casekit/pkg/audit"
	"github.com/dmitrymomot/casekit/pkg/audit/mongostore"
	"github.com/dmitrymomot/casekit/pkg/audit/searchstore"
	"github.com/dmitrymomot/casekit/pkg/auth"
	"github.com/dmitrymomot/casekit/pkg/clientip"
	"github.com/dmitrymomot/casekit/pkg/fingerprint"
	"github.com/dmitrymomot/casekit/pkg/logger"
	"github.com/dmitrymomot/casekit/pkg/pg"
	"github.com/dmitrymomot/casekit/pkg/requestid"
	"github.com/dmitrymomot/casekit/pkg/session"
	"github.com/dmitrymomot/casekit/pkg/session/redisstore"
	"github.com/dmitrymomot/casekit/pkg/tenant"
	"github.com/dmitrymomot/casekit/pkg/tenant/pgstore"
	"github.com/dmitrymomot/casekit/pkg/tenant/rediscache"
)

// app is the assembled service: stores, tenancy pipeline and ambient collaborators.
type app struct {
	cfg  appConfig
	log  *slog.Logger
	deps *deps

	mode        tenant.ModeSource
	directory   *tenant.CachedDirectory
	memberships tenant.MembershipStore
	resolver    *tenant.Resolver
	validator   *tenant.Validator

	sessions *session.Manager
	auth     *auth.Service
	clientIP *clientip.Extractor
	recorder *audit.Recorder
	registry *prometheus.Registry
	metrics  *tenant.Metrics
}

func newLogger(cfg logger.Config, opts ...logger.Option) *slog.Logger {
	opts = append(logger.FromConfig(cfg), opts...)
	opts = append(opts, logger.WithContextExtractors(
		requestid.LoggerExtractor(),
		clientip.LoggerExtractor(),
		tenant.LoggerExtractor(),
	))
	return logger.New(opts...)
}

func newApp(ctx context.Context, cfg appConfig, log *slog.Logger) (a *app, err error) {
	d, err := connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a = &app{cfg: cfg, log: log, deps: d}
	defer func() {
		if err != nil {
			a.close(context.WithoutCancel(ctx))
		}
	}()

	if err := a.initStores(ctx); err != nil {
		return a, err
	}

	a.mode = tenant.StaticMode(cfg.Tenancy.Mode)
	a.sessions = a.newSessions()
	a.resolver = tenant.NewResolver(a.mode, a.directory, a.memberships, append(cfg.Tenancy.ResolverOptions(),
		tenant.WithSessions(tenant.SessionsFromManager(a.sessions)),
		tenant.WithResolverLogger(log),
	)...)
	a.validator = tenant.NewValidator(a.memberships, log)

	if a.auth, err = auth.NewService(cfg.Auth); err != nil {
		return a, err
	}
	if a.clientIP, err = clientip.New(cfg.ClientIP); err != nil {
		return a, err
	}
	if a.recorder, err = a.newRecorder(ctx); err != nil {
		return a, err
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = tenant.NewMetrics(a.registry)

	log.InfoContext(ctx, "application assembled",
		logger.Component("caseserver"),
		slog.String("mode", cfg.Tenancy.Mode.String()),
		slog.String("store", cfg.Backends.TenantStore),
		slog.String("cache", cfg.Backends.Cache),
		slog.Any("audit_sinks", cfg.Backends.AuditSinks),
	)
	return a, nil
}

func (a *app) initStores(ctx context.Context) error {
	var seed *tenant.Seed
	if a.cfg.Backends.SeedFile != "" {
		var err error
		if seed, err = tenant.LoadSeedFile(a.cfg.Backends.SeedFile); err != nil {
			return err
		}
	}

	var dir tenant.Directory
	switch a.cfg.Backends.TenantStore {
	case storePostgres:
		if a.deps.pgCfg.AutoMigrate {
			if err := pg.Migrate(ctx, a.deps.pg, pgstore.Migrations, pgstore.MigrationsDir, a.deps.pgCfg, a.log); err != nil {
				return err
			}
		}
		if seed != nil {
			if err := seed.ApplyTo(ctx, pgstore.NewWriter(a.deps.pg)); err != nil {
				return err
			}
		}
		dir = pgstore.NewDirectory(a.deps.pg, a.deps.pgCfg.QueryTimeout)
		a.memberships = pgstore.NewMemberships(a.deps.pg, a.deps.pgCfg.QueryTimeout)
	default:
		mdir := tenant.NewMemoryDirectory()
		mms := tenant.NewMemoryMemberships(mdir)
		if seed != nil {
			if err := seed.Apply(mdir, mms); err != nil {
				return err
			}
		}
		dir, a.memberships = mdir, mms
	}

	var cache tenant.Cache
	switch a.cfg.Backends.Cache {
	case cacheRedis:
		cache = rediscache.New(a.deps.redis, a.deps.rdCfg.KeyPrefix+"tenant:", a.cfg.Tenancy.CacheTTL,
			rediscache.WithLogger(a.log))
	case cacheNone:
		cache = tenant.NoOpCache{}
	default:
		cache = tenant.NewLRUCache(a.cfg.Tenancy.CacheSize, a.cfg.Tenancy.CacheTTL)
	}
	a.directory = tenant.NewCachedDirectory(dir, cache)
	return nil
}

func (a *app) newSessions() *session.Manager {
	opts := []session.Option{
		session.WithLogger(a.log),
		session.WithTransport(session.NewCompositeTransport(
			session.NewCookieTransport(a.cfg.Session),
			session.NewHeaderTransport(a.cfg.Backends.SessionToken),
		)),
	}
	if a.cfg.Backends.Fingerprint {
		var fpOpts []fingerprint.Option
		if a.cfg.Backends.FingerprintIP {
			fpOpts = append(fpOpts, fingerprint.WithIP())
		}
		opts = append(opts, session.WithFingerprint(fingerprint.New(fpOpts...)))
	}
	if a.cfg.Session.Store == session.StoreRedis {
		opts = append(opts, session.WithStore(redisstore.New(a.deps.redis, a.deps.rdCfg.KeyPrefix+"session:")))
	}
	return session.NewFromConfig(a.cfg.Session, opts...)
}

func (a *app) newRecorder(ctx context.Context) (*audit.Recorder, error) {
	var sinks audit.MultiStorage
	for _, name := range a.cfg.Backends.AuditSinks {
		switch name {
		case sinkLog:
			sinks = append(sinks, audit.NewLogStorage(a.log))
		case sinkMongo:
			s := mongostore.New(a.deps.mongo.Collection(mongostore.DefaultCollection))
			if err := s.EnsureIndexes(ctx); err != nil {
				return nil, fmt.Errorf("audit mongo indexes: %w", err)
			}
			sinks = append(sinks, s)
		case sinkOpenSearch:
			s := searchstore.New(a.deps.search, a.deps.osCfg.AuditIndex)
			if err := s.EnsureIndex(ctx); err != nil {
				return nil, fmt.Errorf("audit opensearch index: %w", err)
			}
			sinks = append(sinks, s)
		}
	}

	var storage audit.Storage = sinks
	if len(sinks) == 1 {
		storage = sinks[0]
	}

	opts := []audit.RecorderOption{audit.WithLogger(a.log)}
	if a.cfg.Backends.AuditHash {
		opts = append(opts, audit.WithHasher(audit.NewSHA256Hasher()))
	}
	return audit.NewRecorder(storage, a.cfg.Audit, opts...), nil
}

// tenantOptions always leaves /api/context optional so anonymous callers can
// discover their tenancy state.
func (a *app) tenantOptions() []tenant.Option {
	return []tenant.Option{
		tenant.WithSkipPaths(a.cfg.Tenancy.SkipPaths...),
		tenant.WithOptionalPaths(append(slices.Clone(a.cfg.Tenancy.OptionalPaths), "/api/context")...),
		tenant.WithLogger(a.log),
		tenant.WithAudit(a.recorder),
		tenant.WithMetrics(a.metrics),
	}
}

// close flushes the audit recorder before the sinks' clients go away.
func (a *app) close(ctx context.Context) {
	var errs []error
	if a.recorder != nil {
		errs = append(errs, a.recorder.Close(ctx))
	}
	if a.sessions != nil {
		errs = append(errs, a.sessions.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.log.ErrorContext(ctx, "failed to stop application", logger.Component("caseserver"), logger.Error(err))
	}
	a.deps.close(ctx, a.log)
}
