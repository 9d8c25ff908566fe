package tenant_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/casekit/pkg/session"
	"github.com/dmitrymomot/casekit/pkg/tenant"
)

const sessionHeader = "X-Session-Token"

// The organization chosen via URL sticks to the session and is used on later requests.
func TestSessionsFromManager(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.member(t, f.staff, f.moj, false)

	mgr := session.New(
		session.WithTransport(session.NewHeaderTransport(sessionHeader)),
		session.WithLogger(slog.New(slog.DiscardHandler)),
	)
	t.Cleanup(func() { _ = mgr.Close() })

	rv := tenant.NewResolver(tenant.StaticMode(tenant.ModeMulti), f.dir, f.memberships,
		tenant.WithSessions(tenant.SessionsFromManager(mgr)),
		tenant.WithUserFunc(userIs(f.staff)))

	var seen tenant.Resolution
	h := mgr.EnsureSession(tenant.Middleware(rv, tenant.NewValidator(f.memberships, nil),
		tenant.WithLogger(slog.New(slog.DiscardHandler)),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = tenant.Current(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, get("/tenant/MOJ/cases"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tenant.SourceURL, seen.Source)

	token := rec.Header().Get(sessionHeader)
	require.NotEmpty(t, token)

	req := get("/api/cases")
	req.Header.Set(sessionHeader, token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tenant.SourceSession, seen.Source)
	assert.Equal(t, "MOJ", seen.OrganizationCode())

	// Without the token the primary membership applies.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get("/api/cases"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, tenant.SourcePrimaryMembership, seen.Source)
	assert.Equal(t, "MOH", seen.OrganizationCode())
}

func TestSessionsFromManagerRejectsForeignState(t *testing.T) {
	t.Parallel()

	mgr := session.New(session.WithTransport(session.NewHeaderTransport(sessionHeader)))
	t.Cleanup(func() { _ = mgr.Close() })

	p := tenant.SessionsFromManager(mgr)
	_, ok := p.Load(get("/"))
	assert.False(t, ok)
	assert.Error(t, p.Save(context.Background(), newMapSession()))
}
