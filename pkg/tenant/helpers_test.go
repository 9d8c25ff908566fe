package tenant_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/casekit/pkg/audit"
	"github.com/dmitrymomot/casekit/pkg/tenant"
)

var errBoom = errors.New("connection refused")

// fixture is a directory with four organizations and a handful of users:
//
//	MOH, MOJ     regular ministries
//	OCM          aggregation office
//	OLD          inactive
type fixture struct {
	dir         *tenant.MemoryDirectory
	memberships *tenant.MemoryMemberships

	moh, moj, ocm, old *tenant.Organization

	staff      *tenant.User // primary member of MOH
	aggregator *tenant.User // primary member of OCM
	superuser  *tenant.User // no memberships
	outsider   *tenant.User // no memberships
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{dir: tenant.NewMemoryDirectory()}
	f.memberships = tenant.NewMemoryMemberships(f.dir)

	put := func(org tenant.Organization) *tenant.Organization {
		stored, err := f.dir.Put(org)
		require.NoError(t, err)
		return stored
	}
	f.moh = put(tenant.Organization{Code: "MOH", Name: "Ministry of Health", Active: true, Modules: []string{"cases"}})
	f.moj = put(tenant.Organization{Code: "MOJ", Name: "Ministry of Justice", Active: true})
	f.ocm = put(tenant.Organization{Code: "OCM", Name: "Coordination Office", Active: true, AggregationOffice: true})
	f.old = put(tenant.Organization{Code: "OLD", Name: "Dissolved", Active: false})

	f.staff = &tenant.User{ID: uuid.New()}
	f.aggregator = &tenant.User{ID: uuid.New()}
	f.superuser = &tenant.User{ID: uuid.New(), Superuser: true}
	f.outsider = &tenant.User{ID: uuid.New()}

	f.member(t, f.staff, f.moh, true)
	f.member(t, f.aggregator, f.ocm, true)
	return f
}

func (f *fixture) member(t *testing.T, u *tenant.User, org *tenant.Organization, primary bool) tenant.Membership {
	t.Helper()
	m, err := f.memberships.Add(tenant.Membership{UserID: u.ID, OrganizationID: org.ID, Primary: primary, Active: true})
	require.NoError(t, err)
	return m
}

// failingDirectory injects errors in front of a Directory.
type failingDirectory struct {
	tenant.Directory
	err   error
	calls atomic.Int32
}

func (d *failingDirectory) FindActiveByCode(ctx context.Context, code string) (*tenant.Organization, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.Directory.FindActiveByCode(ctx, code)
}

func (d *failingDirectory) FindActiveByID(ctx context.Context, id uuid.UUID) (*tenant.Organization, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.Directory.FindActiveByID(ctx, id)
}

func (d *failingDirectory) GetOrCreateDefault(ctx context.Context, code string) (*tenant.Organization, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.Directory.GetOrCreateDefault(ctx, code)
}

// stubMemberships returns canned answers.
type stubMemberships struct {
	primary     []tenant.Membership
	primaryErr  error
	member      bool
	memberErr   error
	aggregation bool
	aggErr      error
}

func (s *stubMemberships) FindActive(context.Context, uuid.UUID) ([]tenant.Membership, error) {
	if s.primaryErr != nil {
		return nil, s.primaryErr
	}
	if len(s.primary) == 0 {
		return nil, tenant.ErrMembershipNotFound
	}
	return append([]tenant.Membership(nil), s.primary...), nil
}

func (s *stubMemberships) IsActiveMember(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return s.member, s.memberErr
}

func (s *stubMemberships) IsAggregationOfficeMember(context.Context, uuid.UUID) (bool, error) {
	return s.aggregation, s.aggErr
}

// countingMemberships counts calls reaching the wrapped store.
type countingMemberships struct {
	tenant.MembershipStore
	calls atomic.Int32
}

func (c *countingMemberships) FindActive(ctx context.Context, userID uuid.UUID) ([]tenant.Membership, error) {
	c.calls.Add(1)
	return c.MembershipStore.FindActive(ctx, userID)
}

func (c *countingMemberships) IsActiveMember(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	c.calls.Add(1)
	return c.MembershipStore.IsActiveMember(ctx, userID, orgID)
}

func (c *countingMemberships) IsAggregationOfficeMember(ctx context.Context, userID uuid.UUID) (bool, error) {
	c.calls.Add(1)
	return c.MembershipStore.IsAggregationOfficeMember(ctx, userID)
}

// mapSession is a SessionState backed by a map.
type mapSession struct {
	mu   sync.Mutex
	data map[string]any
}

func newMapSession(kv ...string) *mapSession {
	s := &mapSession{data: map[string]any{}}
	for i := 0; i+1 < len(kv); i += 2 {
		s.data[kv[i]] = kv[i+1]
	}
	return s
}

func (s *mapSession) GetString(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key].(string)
	return v, ok
}

func (s *mapSession) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *mapSession) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

func (s *mapSession) has(key string) bool {
	_, ok := s.GetString(key)
	return ok
}

// staticSessions hands the same session to every request.
type staticSessions struct {
	sess    *mapSession
	saveErr error
	saves   atomic.Int32
}

func (p *staticSessions) Load(*http.Request) (tenant.SessionState, bool) {
	if p.sess == nil {
		return nil, false
	}
	return p.sess, true
}

func (p *staticSessions) Save(context.Context, tenant.SessionState) error {
	p.saves.Add(1)
	return p.saveErr
}

// userIs returns a UserFunc yielding u.
func userIs(u *tenant.User) tenant.UserFunc {
	return func(*http.Request) *tenant.User { return u }
}

// recordingSink collects audit events.
type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *recordingSink) Record(_ context.Context, e audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingSink) last(t *testing.T) audit.Event {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.events)
	return s.events[len(s.events)-1]
}

func request(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func get(path string) *http.Request {
	return request(http.MethodGet, path)
}
