package tenant_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/casekit/pkg/audit"
	"github.com/dmitrymomot/casekit/pkg/requestid"
	"github.com/dmitrymomot/casekit/pkg/tenant"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// downstream records what the wrapped handler observed.
type downstream struct {
	called bool
	ctx    context.Context
	org    *tenant.Organization
}

func (p *downstream) handler(w http.ResponseWriter, r *http.Request) {
	p.called = true
	p.ctx = r.Context()
	p.org, _ = tenant.OrganizationFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

type stack struct {
	handler http.Handler
	sink    *recordingSink
	next    *downstream
	reg     *prometheus.Registry
}

func newStack(t *testing.T, dir tenant.Directory, ms tenant.MembershipStore, user *tenant.User, opts ...tenant.Option) *stack {
	t.Helper()

	s := &stack{sink: &recordingSink{}, next: &downstream{}, reg: prometheus.NewRegistry()}
	rv := tenant.NewResolver(tenant.StaticMode(tenant.ModeMulti), dir, ms, tenant.WithUserFunc(userIs(user)))
	v := tenant.NewValidator(ms, slog.New(slog.DiscardHandler))

	opts = append([]tenant.Option{
		tenant.WithAudit(s.sink),
		tenant.WithMetrics(tenant.NewMetrics(s.reg)),
		tenant.WithLogger(slog.New(slog.DiscardHandler)),
		tenant.WithClock(func() time.Time { return fixedNow }),
	}, opts...)

	s.handler = tenant.Middleware(rv, v, opts...)(http.HandlerFunc(s.next.handler))
	return s
}

func (s *stack) serve(r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, r)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestMiddlewareAllowed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := newStack(t, f.dir, f.memberships, f.staff)

	handler := requestid.Middleware(s.handler)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, get("/tenant/MOH/cases"))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, s.next.called)
	require.NotNil(t, s.next.org)
	assert.Equal(t, "MOH", s.next.org.Code)

	// The binding does not outlive the request.
	assert.True(t, tenant.Current(s.next.ctx).IsEmpty())

	e := s.sink.last(t)
	assert.Equal(t, "MOH", e.OrganizationCode)
	assert.Equal(t, string(tenant.SourceURL), e.Source)
	assert.Equal(t, f.staff.ID.String(), e.UserID)
	assert.Equal(t, string(tenant.Allow), e.Decision)
	assert.Equal(t, string(tenant.PhaseCleaned), e.Phase)
	assert.Empty(t, e.Reason)
	assert.Empty(t, e.Bypass)
	assert.Empty(t, e.Error)
	assert.Equal(t, http.MethodGet, e.Method)
	assert.Equal(t, "/tenant/MOH/cases", e.Path)
	assert.Equal(t, "192.0.2.1", e.IP)
	assert.Equal(t, rec.Header().Get(requestid.Header), e.RequestID)
	assert.NotEmpty(t, e.RequestID)
	assert.Equal(t, fixedNow, e.CreatedAt)
}

func TestMiddlewareDenials(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	tests := []struct {
		name        string
		user        *tenant.User
		req         *http.Request
		publicCode  string
		auditReason tenant.Reason
		auditOrg    string
	}{
		{
			name:        "anonymous on tenant url",
			req:         get("/tenant/MOH/cases"),
			publicCode:  "no_membership",
			auditReason: tenant.ReasonNoMembership,
			auditOrg:    "MOH",
		},
		{
			name:        "unknown organization looks like missing membership",
			user:        f.staff,
			req:         get("/tenant/NOPE/cases"),
			publicCode:  "no_membership",
			auditReason: tenant.ReasonInactiveOrganization,
		},
		{
			name:        "inactive organization looks like missing membership",
			user:        f.superuser,
			req:         get("/tenant/OLD"),
			publicCode:  "no_membership",
			auditReason: tenant.ReasonInactiveOrganization,
		},
		{
			name:        "no organization on required route",
			user:        f.outsider,
			req:         get("/api/cases"),
			publicCode:  "organization_required",
			auditReason: tenant.ReasonOrganizationRequired,
		},
		{
			name:        "aggregation write",
			user:        f.aggregator,
			req:         request(http.MethodPost, "/tenant/MOH/cases"),
			publicCode:  "read_only_violation",
			auditReason: tenant.ReasonReadOnlyViolation,
			auditOrg:    "MOH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newStack(t, f.dir, f.memberships, tt.user)

			rec := s.serve(tt.req)
			require.Equal(t, http.StatusForbidden, rec.Code)
			assert.False(t, s.next.called)

			body := decodeError(t, rec)
			assert.Equal(t, "forbidden", body["error"])
			assert.Equal(t, tt.publicCode, body["reason"])

			e := s.sink.last(t)
			assert.Equal(t, string(tenant.PhaseDenied), e.Phase)
			assert.Equal(t, string(tenant.Deny), e.Decision)
			assert.Equal(t, string(tt.auditReason), e.Reason)
			assert.Equal(t, tt.auditOrg, e.OrganizationCode)
			if tt.user == nil {
				assert.Equal(t, audit.Anonymous, e.UserID)
			} else {
				assert.Equal(t, tt.user.ID.String(), e.UserID, "denials are attributed to the acting user")
			}
		})
	}
}

func TestMiddlewareBypassIsAudited(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	t.Run("superuser", func(t *testing.T) {
		t.Parallel()
		s := newStack(t, f.dir, f.memberships, f.superuser)

		rec := s.serve(request(http.MethodDelete, "/tenant/MOJ/cases/1"))
		require.Equal(t, http.StatusOK, rec.Code)

		e := s.sink.last(t)
		assert.Equal(t, string(tenant.Allow), e.Decision)
		assert.Equal(t, string(tenant.BypassSuperuser), e.Bypass)
		assert.Equal(t, "MOJ", e.OrganizationCode)
	})

	t.Run("aggregation read", func(t *testing.T) {
		t.Parallel()
		s := newStack(t, f.dir, f.memberships, f.aggregator)

		rec := s.serve(get("/tenant/MOH/cases"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "MOH", s.next.org.Code)

		e := s.sink.last(t)
		assert.Equal(t, string(tenant.AllowReadOnly), e.Decision)
		assert.Equal(t, string(tenant.BypassAggregation), e.Bypass)
	})
}

func TestMiddlewareFailures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	t.Run("store unavailable", func(t *testing.T) {
		t.Parallel()
		s := newStack(t, &failingDirectory{Directory: f.dir, err: errBoom}, f.memberships, f.staff)

		rec := s.serve(get("/tenant/MOH"))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.False(t, s.next.called)
		assert.Equal(t, "internal_server_error", decodeError(t, rec)["error"])

		e := s.sink.last(t)
		assert.Equal(t, string(tenant.PhaseFailed), e.Phase)
		assert.Empty(t, e.Decision)
		assert.Contains(t, e.Error, "tenant.store_unavailable")
		assert.Equal(t, f.staff.ID.String(), e.UserID)
	})

	t.Run("validator store unavailable", func(t *testing.T) {
		t.Parallel()
		s := newStack(t, f.dir, &stubMemberships{
			primary:   []tenant.Membership{{ID: 1, UserID: f.staff.ID, OrganizationID: f.moh.ID, Primary: true, Active: true, Organization: f.moh}},
			memberErr: errBoom,
		}, f.staff)

		rec := s.serve(get("/api/cases"))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, string(tenant.PhaseFailed), s.sink.last(t).Phase)
	})

	t.Run("handler panic is cleaned up and re-raised", func(t *testing.T) {
		t.Parallel()
		sink := &recordingSink{}
		var seen context.Context
		rv := tenant.NewResolver(tenant.StaticMode(tenant.ModeMulti), f.dir, f.memberships, tenant.WithUserFunc(userIs(f.staff)))
		h := tenant.Middleware(rv, tenant.NewValidator(f.memberships, nil),
			tenant.WithAudit(sink), tenant.WithLogger(slog.New(slog.DiscardHandler)),
		)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen = r.Context()
			panic("boom")
		}))

		assert.PanicsWithValue(t, "boom", func() {
			h.ServeHTTP(httptest.NewRecorder(), get("/tenant/MOH"))
		})
		require.NotNil(t, seen)
		assert.True(t, tenant.Current(seen).IsEmpty())

		e := sink.last(t)
		assert.Equal(t, string(tenant.PhaseFailed), e.Phase)
		assert.Contains(t, e.Error, "tenant.handler_panic")
		assert.Equal(t, "MOH", e.OrganizationCode)
	})
}

func TestMiddlewareLeakDetection(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := newStack(t, f.dir, f.memberships, f.staff)

	ctx, release := tenant.Bind(context.Background(), tenant.Resolution{Organization: f.moj, Source: tenant.SourceURL})
	defer release()

	rec := s.serve(get("/tenant/MOH").WithContext(ctx))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, s.next.called)
	assert.True(t, tenant.Current(ctx).IsEmpty(), "leaked binding is cleared")

	e := s.sink.last(t)
	assert.Equal(t, string(tenant.PhaseFailed), e.Phase)
	assert.Contains(t, e.Error, "tenant.context_leak_detected")
	assert.Equal(t, f.staff.ID.String(), e.UserID)

	expected := `
# HELP tenant_context_leaks_total Requests that started with a tenant already bound
# TYPE tenant_context_leaks_total counter
tenant_context_leaks_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(s.reg, strings.NewReader(expected), "tenant_context_leaks_total"))
}

func TestMiddlewarePaths(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	t.Run("skip paths bypass the lifecycle", func(t *testing.T) {
		t.Parallel()
		s := newStack(t, f.dir, f.memberships, nil, tenant.WithSkipPaths("/healthz"))

		rec := s.serve(get("/healthz"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, s.next.called)
		assert.Empty(t, s.sink.events)
	})

	t.Run("skip paths match whole segments", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			path    string
			skipped bool
		}{
			{"/metrics", true},
			{"/metrics/", true},
			{"/metrics/go", true},
			{"/metricsfoo", false},
			{"/healthzX", false},
		}
		for _, tt := range tests {
			s := newStack(t, f.dir, f.memberships, nil, tenant.WithSkipPaths("/metrics", "/healthz", ""))
			s.serve(get(tt.path))
			assert.Equal(t, tt.skipped, len(s.sink.events) == 0, tt.path)
		}
	})

	t.Run("optional paths allow no organization", func(t *testing.T) {
		t.Parallel()
		s := newStack(t, f.dir, f.memberships, f.outsider, tenant.WithOptionalPaths("/api/me"))

		rec := s.serve(get("/api/me"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, s.next.org)

		e := s.sink.last(t)
		assert.Equal(t, string(tenant.Allow), e.Decision)
		assert.Equal(t, string(tenant.SourceNone), e.Source)

		rec = s.serve(get("/api/cases"))
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = s.serve(get("/api/meetings"))
		assert.Equal(t, http.StatusForbidden, rec.Code, "optional paths match whole segments")
	})
}

func TestMiddlewareMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	s := newStack(t, f.dir, f.memberships, f.staff)

	s.serve(get("/tenant/MOH"))
	s.serve(get("/tenant/MOH"))
	s.serve(get("/tenant/MOJ"))

	expected := `
# HELP tenant_access_decisions_total Tenant access decisions by outcome
# TYPE tenant_access_decisions_total counter
tenant_access_decisions_total{decision="allow",reason="",source="url"} 2
tenant_access_decisions_total{decision="deny",reason="no_membership",source="url"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(s.reg, strings.NewReader(expected), "tenant_access_decisions_total"))

	n, err := testutil.GatherAndCount(s.reg, "tenant_resolution_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMiddlewareWithoutAuditOrMetrics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rv := tenant.NewResolver(tenant.StaticMode(tenant.ModeMulti), f.dir, f.memberships, tenant.WithUserFunc(userIs(f.staff)))
	h := tenant.Middleware(rv, tenant.NewValidator(f.memberships, nil))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, get("/tenant/MOH"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

var _ tenant.AuditSink = (*audit.Recorder)(nil)
