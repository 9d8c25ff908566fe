package tenant

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
)

// Source records which step of resolution produced the organization.
type Source string

const (
	SourceNone              Source = "none"
	SourceURL               Source = "url"
	SourceSession           Source = "session"
	SourcePrimaryMembership Source = "primary-membership"
	SourceDefault           Source = "default-singleton"
)

// Resolution is the request-scoped result of tenant resolution.
type Resolution struct {
	Organization *Organization
	Source       Source

	// CrossTenant is set when the acting user is a superuser or a member of
	// the aggregation office. It never changes which organization was resolved.
	CrossTenant bool

	// User is the acting user at resolution time; nil when anonymous.
	User *User
}

// IsEmpty reports whether no organization was resolved.
func (r Resolution) IsEmpty() bool {
	return r.Organization == nil
}

// OrganizationCode returns the resolved code or an empty string.
func (r Resolution) OrganizationCode() string {
	if r.Organization == nil {
		return ""
	}
	return r.Organization.Code
}

func (r Resolution) wellFormed() bool {
	switch r.Source {
	case SourceNone, "":
		return r.Organization == nil
	case SourceURL, SourceSession, SourcePrimaryMembership, SourceDefault:
		return r.Organization != nil
	default:
		return false
	}
}

func emptyResolution() Resolution {
	return Resolution{Source: SourceNone}
}

// slot is the per-request storage cell. Each request gets its own slot,
// so no locking beyond the atomic pointer is needed.
type slot struct {
	res atomic.Pointer[Resolution]
}

type slotKey struct{}

// Bind installs res for the request carried by ctx. The returned release func
// clears the slot; it is idempotent and safe to call from a defer.
func Bind(ctx context.Context, res Resolution) (context.Context, func()) {
	s := &slot{}
	stored := cloneResolution(res)
	s.res.Store(&stored)
	return context.WithValue(ctx, slotKey{}, s), func() { s.res.Store(nil) }
}

// Current returns the resolution bound to ctx, or an empty one when nothing
// is bound or the slot has been cleared. It never panics.
func Current(ctx context.Context) Resolution {
	if ctx == nil {
		return emptyResolution()
	}
	s, ok := ctx.Value(slotKey{}).(*slot)
	if !ok || s == nil {
		return emptyResolution()
	}
	res := s.res.Load()
	if res == nil {
		return emptyResolution()
	}
	return *res
}

// Clear empties the slot bound to ctx. Calling it without a bound slot, or
// more than once, is a no-op.
func Clear(ctx context.Context) {
	if ctx == nil {
		return
	}
	if s, ok := ctx.Value(slotKey{}).(*slot); ok && s != nil {
		s.res.Store(nil)
	}
}

// OrganizationFromContext returns the bound organization.
func OrganizationFromContext(ctx context.Context) (*Organization, bool) {
	res := Current(ctx)
	return res.Organization, res.Organization != nil
}

// OrganizationIDFromContext returns the bound organization id.
func OrganizationIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	org, ok := OrganizationFromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return org.ID, true
}

// MustOrganization returns the bound organization and panics with
// ErrNoOrganization when there is none.
// Use it only in handlers mounted behind a route that requires an organization.
func MustOrganization(ctx context.Context) *Organization {
	org, ok := OrganizationFromContext(ctx)
	if !ok {
		panic(ErrNoOrganization)
	}
	return org
}

// LoggerExtractor returns a logger.ContextExtractor that adds the bound organization code and source.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		res := Current(ctx)
		if res.IsEmpty() {
			return slog.Attr{}, false
		}
		return slog.Group("tenant",
			slog.String("org_code", res.Organization.Code),
			slog.String("source", string(res.Source)),
		), true
	}
}

func cloneResolution(res Resolution) Resolution {
	if res.Organization != nil {
		org := *res.Organization
		org.Modules = slices.Clone(org.Modules)
		res.Organization = &org
	}
	if res.User != nil {
		u := *res.User
		res.User = &u
	}
	return res
}
