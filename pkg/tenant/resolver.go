package tenant

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrymomot/casekit/pkg/auth"
	"github.com/dmitrymomot/casekit/pkg/logger"
)

// Session keys written on URL resolution and read on later requests.
// Both are always written and cleared together.
const (
	SessionKeyOrgCode = "tenant_org_code"
	SessionKeyOrgID   = "tenant_org_id"
)

const (
	// DefaultPathPrefix is the leading path segment that marks tenant-scoped URLs.
	DefaultPathPrefix = "/tenant/"

	// DefaultOrganizationCode is the code of the organization used in single-tenant mode.
	DefaultOrganizationCode = "DEFAULT"
)

// UserFunc extracts the acting user from a request. It returns nil for anonymous requests.
type UserFunc func(r *http.Request) *User

// Resolver determines the organization a request applies to.
//
// Priority in multi-tenant mode: URL segment, then session, then the user's
// primary membership, then nothing. In single-tenant mode the default
// organization is always returned.
type Resolver struct {
	mode        ModeSource
	directory   Directory
	memberships MembershipStore
	sessions    SessionProvider
	userFunc    UserFunc
	pathPrefix  string
	defaultCode string
	logger      *slog.Logger
}

// NewResolver creates a resolver over the given collaborators.
func NewResolver(mode ModeSource, directory Directory, memberships MembershipStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		mode:        mode,
		directory:   directory,
		memberships: memberships,
		sessions:    noSessions{},
		userFunc:    UserFromAuth,
		pathPrefix:  DefaultPathPrefix,
		defaultCode: DefaultOrganizationCode,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.mode == nil {
		r.mode = StaticMode(ModeMulti)
	}
	return r
}

// Resolve runs the resolution procedure for r.
//
// A URL code that does not resolve to an active organization yields
// ErrTenantNotFound. Collaborator failures yield ErrStoreUnavailable; the
// resolver never degrades them into an empty resolution.
func (rv *Resolver) Resolve(r *http.Request) (Resolution, error) {
	ctx := r.Context()
	user := rv.userFunc(r)

	if rv.mode.Mode() == ModeSingle {
		org, err := rv.directory.GetOrCreateDefault(ctx, rv.defaultCode)
		if err != nil {
			return emptyResolution(), storeError(err)
		}
		return Resolution{
			Organization: org,
			Source:       SourceDefault,
			CrossTenant:  user != nil && user.Superuser,
			User:         user,
		}, nil
	}

	res, consulted, err := rv.resolveMulti(ctx, r, user)
	if err != nil {
		return emptyResolution(), err
	}
	res.User = user

	switch {
	case user == nil:
	case user.Superuser:
		res.CrossTenant = true
	case !consulted:
		ok, err := rv.memberships.IsAggregationOfficeMember(ctx, user.ID)
		if err != nil {
			return emptyResolution(), storeError(err)
		}
		res.CrossTenant = ok
	}

	return res, nil
}

// User returns the acting user of r, nil for anonymous requests.
func (rv *Resolver) User(r *http.Request) *User {
	return rv.userFunc(r)
}

// resolveMulti reports whether the user's memberships were already read, in
// which case CrossTenant is final and no aggregation query is needed.
func (rv *Resolver) resolveMulti(ctx context.Context, r *http.Request, user *User) (Resolution, bool, error) {
	if code, ok := rv.codeFromPath(r.URL.Path); ok {
		res, err := rv.fromURL(ctx, r, code)
		return res, false, err
	}

	res, ok, err := rv.fromSession(ctx, r)
	if err != nil || ok {
		return res, false, err
	}

	if user == nil {
		return emptyResolution(), false, nil
	}
	return rv.fromPrimaryMembership(ctx, user)
}

// codeFromPath extracts the raw code segment following the configured prefix.
func (rv *Resolver) codeFromPath(path string) (string, bool) {
	if !strings.HasPrefix(path, rv.pathPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(path, rv.pathPrefix)
	code, _, _ := strings.Cut(rest, "/")
	if code == "" {
		return "", false
	}
	return code, true
}

func (rv *Resolver) fromURL(ctx context.Context, r *http.Request, raw string) (Resolution, error) {
	code, err := NormalizeCode(raw)
	if err != nil {
		return emptyResolution(), fmt.Errorf("%w: %q", ErrTenantNotFound, raw)
	}

	org, err := rv.directory.FindActiveByCode(ctx, code)
	if err != nil {
		err = storeError(err)
		if errors.Is(err, ErrTenantNotFound) {
			return emptyResolution(), fmt.Errorf("%w: %q", ErrTenantNotFound, code)
		}
		return emptyResolution(), err
	}

	if sess, ok := rv.sessions.Load(r); ok {
		current, _ := sess.GetString(SessionKeyOrgID)
		if current != org.ID.String() {
			sess.Set(SessionKeyOrgCode, org.Code)
			sess.Set(SessionKeyOrgID, org.ID.String())
			rv.saveSession(ctx, sess)
		}
	}

	return Resolution{Organization: org, Source: SourceURL}, nil
}

func (rv *Resolver) fromSession(ctx context.Context, r *http.Request) (Resolution, bool, error) {
	sess, ok := rv.sessions.Load(r)
	if !ok {
		return Resolution{}, false, nil
	}

	rawID, hasID := sess.GetString(SessionKeyOrgID)
	rawCode, hasCode := sess.GetString(SessionKeyOrgCode)
	if !hasID && !hasCode {
		return Resolution{}, false, nil
	}

	var (
		org *Organization
		err error
	)
	if id, perr := uuid.Parse(rawID); hasID && perr == nil {
		org, err = rv.directory.FindActiveByID(ctx, id)
	} else if code, nerr := NormalizeCode(rawCode); hasCode && nerr == nil {
		org, err = rv.directory.FindActiveByCode(ctx, code)
	} else {
		err = ErrTenantNotFound
	}

	if err != nil {
		err = storeError(err)
		if !errors.Is(err, ErrTenantNotFound) {
			return Resolution{}, false, err
		}
		rv.logger.InfoContext(ctx, "clearing stale tenant from session",
			logger.Component("tenant.resolver"),
			logger.OrgCode(rawCode),
		)
		sess.Delete(SessionKeyOrgCode)
		sess.Delete(SessionKeyOrgID)
		rv.saveSession(ctx, sess)
		return Resolution{}, false, nil
	}

	return Resolution{Organization: org, Source: SourceSession}, true, nil
}

// fromPrimaryMembership picks the lowest-id primary membership, or the
// lowest-id active one when none is flagged. The same rows answer whether the
// user belongs to the aggregation office.
func (rv *Resolver) fromPrimaryMembership(ctx context.Context, user *User) (Resolution, bool, error) {
	rows, err := rv.memberships.FindActive(ctx, user.ID)
	if err != nil {
		err = storeError(err)
		if errors.Is(err, ErrMembershipNotFound) {
			return emptyResolution(), true, nil
		}
		return emptyResolution(), false, err
	}
	if len(rows) == 0 {
		return emptyResolution(), true, nil
	}

	slices.SortFunc(rows, func(a, b Membership) int { return cmp.Compare(a.ID, b.ID) })

	consulted := true
	crossTenant := false
	var primary []Membership
	for _, m := range rows {
		if m.Primary {
			primary = append(primary, m)
		}
		switch {
		case m.Organization == nil:
			consulted = false
		case m.Organization.AggregationOffice && m.Organization.Active:
			crossTenant = true
		}
	}
	candidates := primary
	if len(candidates) == 0 {
		candidates = rows
	}
	chosen := candidates[0]
	none := Resolution{Source: SourceNone, CrossTenant: crossTenant}

	if len(candidates) > 1 || !chosen.Primary {
		rv.logger.WarnContext(ctx, "ambiguous primary membership",
			logger.Component("tenant.resolver"),
			logger.UserID(user.ID),
			slog.Int64("membership_id", chosen.ID),
			slog.Int("candidates", len(candidates)),
			slog.Bool("primary_flagged", chosen.Primary),
			logger.Error(ErrAmbiguousPrimaryMembership),
		)
	}

	org := chosen.Organization
	if org == nil {
		org, err = rv.directory.FindActiveByID(ctx, chosen.OrganizationID)
		if err != nil {
			err = storeError(err)
			if errors.Is(err, ErrTenantNotFound) {
				return none, consulted, nil
			}
			return emptyResolution(), false, err
		}
	}
	if !org.Active {
		return none, consulted, nil
	}

	return Resolution{Organization: org, Source: SourcePrimaryMembership, CrossTenant: crossTenant}, consulted, nil
}

func (rv *Resolver) saveSession(ctx context.Context, sess SessionState) {
	if err := rv.sessions.Save(ctx, sess); err != nil {
		rv.logger.WarnContext(ctx, "failed to persist tenant session state",
			logger.Component("tenant.resolver"),
			logger.Error(err),
		)
	}
}

// UserFromAuth is the default UserFunc: it reads the identity installed by auth.Middleware.
func UserFromAuth(r *http.Request) *User {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return nil
	}
	return &User{ID: id.UserID, Superuser: id.Superuser}
}
