// Package tenant resolves the organization a request belongs to, decides
// whether the acting user may access it, and makes the result available to
// downstream code for the lifetime of the request.
//
// # Architecture
//
// The package is built around four steps, each independently testable:
//
// 1. Resolver - determines the organization from the URL, the session, or the
// user's primary membership, in that order. In single-tenant mode it always
// returns the default organization.
// 2. Validator - evaluates the access table (membership, superuser bypass,
// aggregation office read-only access) and the read-only verb check.
// 3. Bind/Current/Clear - request-scoped storage of the Resolution.
// 4. Middleware - runs the lifecycle Init → Resolved → Validated → Propagated
// → HandlerExecuting → Cleaned, with Denied and Failed as terminal states,
// and emits one audit event per request.
//
// Resolution and authorization are separate on purpose: a URL naming an
// organization the user cannot access is resolved to that organization and
// then denied with 403, never silently replaced by another organization.
//
// # Usage
//
//	import "github.com/dmitrymomot/casekit/pkg/tenant"
//
//	dir := tenant.NewCachedDirectory(pgstore.NewDirectory(pool), tenant.NewLRUCache(1000, 5*time.Minute))
//	members := pgstore.NewMemberships(pool)
//
//	resolver := tenant.NewResolver(tenant.StaticMode(cfg.Mode), dir, members,
//		tenant.WithSessions(tenant.SessionsFromManager(sessions)),
//	)
//	validator := tenant.NewValidator(members, log)
//
//	router.Use(tenant.Middleware(resolver, validator,
//		tenant.WithSkipPaths("/healthz", "/metrics"),
//		tenant.WithAudit(recorder),
//	))
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		org := tenant.MustOrganization(r.Context())
//		// query data scoped to org.ID
//	}
//
// # Modes
//
// The operational mode is read through a ModeSource on every call, so tests
// can run single- and multi-tenant cases side by side without global state.
//
// # Error Handling
//
// Lookups report unknown and inactive organizations alike as
// ErrTenantNotFound. Any other collaborator failure surfaces as
// ErrStoreUnavailable and fails the request with 500; the middleware never
// falls back to "no organization" on infrastructure errors. Denials carry a
// Reason; the response body shows Reason.Public so that clients cannot probe
// which organization codes exist.
package tenant
