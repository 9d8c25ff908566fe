package tenant

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/casekit/pkg/audit"
)

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSessions sets where the resolver reads and persists the session tenant.
func WithSessions(p SessionProvider) ResolverOption {
	return func(r *Resolver) {
		if p != nil {
			r.sessions = p
		}
	}
}

// WithUserFunc overrides how the acting user is extracted from the request.
func WithUserFunc(fn UserFunc) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.userFunc = fn
		}
	}
}

// WithPathPrefix sets the leading path segment of tenant-scoped URLs, e.g. "/tenant/".
func WithPathPrefix(prefix string) ResolverOption {
	return func(r *Resolver) {
		if prefix == "" {
			return
		}
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		r.pathPrefix = prefix
	}
}

// WithDefaultCode sets the code of the single-tenant default organization.
func WithDefaultCode(code string) ResolverOption {
	return func(r *Resolver) {
		if normalized, err := NormalizeCode(code); err == nil {
			r.defaultCode = normalized
		}
	}
}

// WithResolverLogger sets the resolver logger.
func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// AuditSink receives one event per request. Record must not block.
type AuditSink interface {
	Record(ctx context.Context, e audit.Event)
}

// RequiredFunc reports whether a route needs a resolved organization.
type RequiredFunc func(r *http.Request) bool

// config holds middleware configuration.
type config struct {
	skipPaths []string
	required  RequiredFunc
	logger    *slog.Logger
	audit     AuditSink
	metrics   *Metrics
	clock     func() time.Time
}

// Option configures the middleware.
type Option func(*config)

// WithSkipPaths sets paths that bypass the tenant lifecycle entirely,
// together with everything below them.
func WithSkipPaths(paths ...string) Option {
	return func(c *config) {
		c.skipPaths = append(c.skipPaths, paths...)
	}
}

// WithRequired sets the predicate deciding whether a route needs an organization.
// By default every route does.
func WithRequired(fn RequiredFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.required = fn
		}
	}
}

// WithOptionalPaths marks path prefixes where an organization is not required.
func WithOptionalPaths(prefixes ...string) Option {
	return WithRequired(func(r *http.Request) bool {
		return !matchesAny(r.URL.Path, prefixes)
	})
}

// WithLogger sets a custom logger for the middleware.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithAudit sets the sink receiving per-request audit events.
func WithAudit(sink AuditSink) Option {
	return func(c *config) {
		c.audit = sink
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.clock = now
		}
	}
}

func defaultConfig() *config {
	return &config{
		required: func(*http.Request) bool { return true },
		logger:   slog.Default(),
		clock:    time.Now,
	}
}
