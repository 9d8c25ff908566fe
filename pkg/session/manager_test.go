package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/casekit/pkg/session"
)

func newManager(t *testing.T, opts ...session.Option) *session.Manager {
	t.Helper()
	cfg := session.DefaultConfig()
	cfg.CookieName = "test-sid"
	cfg.CleanupInterval = 0

	m := session.NewFromConfig(cfg, opts...)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// carry copies response cookies into a new request.
func carry(rec *httptest.ResponseRecorder) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			r.AddCookie(c)
		}
	}
	return r
}

func TestManagerEnsure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newManager(t)

	rec := httptest.NewRecorder()
	s1, err := m.Ensure(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.False(t, s1.IsAuthenticated())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "test-sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, s1.Token, cookies[0].Value)

	s2, err := m.Ensure(ctx, httptest.NewRecorder(), carry(rec))
	require.NoError(t, err)
	assert.Equal(t, s1.ID, s2.ID)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "test-sid", Value: "unknown"})
	s3, err := m.Ensure(ctx, httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID, s3.ID)
}

func TestManagerSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newManager(t)

	rec := httptest.NewRecorder()
	s, err := m.Ensure(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	s.Set("tenant_org_code", "MOH")
	require.NoError(t, m.Save(ctx, s))

	got, err := m.Get(ctx, carry(rec))
	require.NoError(t, err)
	v, ok := got.GetString("tenant_org_code")
	require.True(t, ok)
	assert.Equal(t, "MOH", v)

	assert.ErrorIs(t, m.Save(ctx, nil), session.ErrInvalidSession)
}

func TestManagerAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newManager(t)

	rec := httptest.NewRecorder()
	anon, err := m.Ensure(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	oldToken := anon.Token

	userID := uuid.New()
	authRec := httptest.NewRecorder()
	authed, err := m.Authenticate(ctx, authRec, carry(rec), userID)
	require.NoError(t, err)
	assert.Equal(t, anon.ID, authed.ID)
	assert.NotEqual(t, oldToken, authed.Token, "token rotates on authentication")
	require.True(t, authed.IsAuthenticated())
	assert.Equal(t, userID, *authed.UserID)

	_, err = m.Get(ctx, carry(rec))
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	got, err := m.Get(ctx, carry(authRec))
	require.NoError(t, err)
	assert.True(t, got.IsAuthenticated())
}

func TestManagerDestroyAndRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newManager(t)

	rec := httptest.NewRecorder()
	_, err := m.Ensure(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	require.NoError(t, m.Refresh(ctx, httptest.NewRecorder(), carry(rec)))

	destroyRec := httptest.NewRecorder()
	require.NoError(t, m.Destroy(ctx, destroyRec, carry(rec)))

	cleared := destroyRec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Negative(t, cleared[0].MaxAge)

	_, err = m.Get(ctx, carry(rec))
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	assert.ErrorIs(t, m.Refresh(ctx, httptest.NewRecorder(), carry(rec)), session.ErrSessionNotFound)
}

func TestManagerFingerprint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newManager(t, session.WithFingerprint(func(r *http.Request) string {
		return r.UserAgent()
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "browser-a")
	rec := httptest.NewRecorder()
	_, err := m.Ensure(ctx, rec, r)
	require.NoError(t, err)

	same := carry(rec)
	same.Header.Set("User-Agent", "browser-a")
	_, err = m.Get(ctx, same)
	assert.NoError(t, err)

	other := carry(rec)
	other.Header.Set("User-Agent", "browser-b")
	_, err = m.Get(ctx, other)
	assert.ErrorIs(t, err, session.ErrInvalidSession)
}

func TestManagerExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newManager(t, session.WithIdleTimeout(time.Hour, time.Hour), session.WithMaxLifetime(-time.Second, time.Hour))

	rec := httptest.NewRecorder()
	_, err := m.Ensure(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	_, err = m.Get(ctx, carry(rec))
	assert.ErrorIs(t, err, session.ErrSessionExpired)
}

func TestHeaderTransport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newManager(t, session.WithTransport(session.NewHeaderTransport("X-Session-Token")))

	rec := httptest.NewRecorder()
	s, err := m.Ensure(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, s.Token, rec.Header().Get("X-Session-Token"))
	assert.NotEmpty(t, rec.Header().Get("X-Session-Token-Expires"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Session-Token", s.Token)
	got, err := m.Get(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestCompositeTransport(t *testing.T) {
	t.Parallel()

	cookie := session.NewCookieTransport(session.Config{CookieName: "sid"})
	header := session.NewHeaderTransport("X-Session-Token")
	tr := session.NewCompositeTransport(cookie, header)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := tr.GetToken(r)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	r.Header.Set("X-Session-Token", "from-header")
	token, err := tr.GetToken(r)
	require.NoError(t, err)
	assert.Equal(t, "from-header", token)

	r.AddCookie(&http.Cookie{Name: "sid", Value: "from-cookie"})
	token, err = tr.GetToken(r)
	require.NoError(t, err)
	assert.Equal(t, "from-cookie", token)

	rec := httptest.NewRecorder()
	require.NoError(t, tr.SetToken(rec, "both", time.Minute))
	assert.Equal(t, "both", rec.Header().Get("X-Session-Token"))
	require.Len(t, rec.Result().Cookies(), 1)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := newManager(t)

	run := func(mw func(http.Handler) http.Handler, r *http.Request) (*session.Session, *httptest.ResponseRecorder) {
		var got *session.Session
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = session.FromContext(r.Context())
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return got, rec
	}

	t.Run("no session passes through", func(t *testing.T) {
		t.Parallel()
		got, rec := run(m.Middleware, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Nil(t, got)
		assert.Empty(t, rec.Result().Cookies())
	})

	t.Run("existing session is loaded", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		s, err := m.Ensure(ctx, rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)

		got, _ := run(m.Middleware, carry(rec))
		require.NotNil(t, got)
		assert.Equal(t, s.ID, got.ID)
	})

	t.Run("ensure session creates one", func(t *testing.T) {
		t.Parallel()
		got, rec := run(m.EnsureSession, httptest.NewRequest(http.MethodGet, "/", nil))
		require.NotNil(t, got)
		assert.Len(t, rec.Result().Cookies(), 1)
	})
}
