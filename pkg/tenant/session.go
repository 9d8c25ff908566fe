package tenant

import (
	"context"
	"errors"
	"net/http"

	"github.com/dmitrymomot/casekit/pkg/session"
)

// SessionState is the subset of a session the resolver reads and writes.
// *session.Session satisfies it.
type SessionState interface {
	GetString(key string) (string, bool)
	Set(key string, value any)
	Delete(key string)
}

// SessionProvider gives the resolver access to the request's session.
type SessionProvider interface {
	// Load returns the session attached to the request, if any.
	Load(r *http.Request) (SessionState, bool)

	// Save persists changes made to the session.
	Save(ctx context.Context, s SessionState) error
}

type noSessions struct{}

func (noSessions) Load(*http.Request) (SessionState, bool)  { return nil, false }
func (noSessions) Save(context.Context, SessionState) error { return nil }

var errForeignSession = errors.New("tenant: session was not loaded by session.Manager")

// managerSessions reads the session installed by session.Manager.Middleware.
type managerSessions struct {
	manager *session.Manager
}

// SessionsFromManager adapts a session manager to SessionProvider.
// The session middleware must run before the tenant middleware.
func SessionsFromManager(m *session.Manager) SessionProvider {
	return managerSessions{manager: m}
}

func (p managerSessions) Load(r *http.Request) (SessionState, bool) {
	s, ok := session.FromContext(r.Context())
	if !ok || s == nil {
		return nil, false
	}
	return s, true
}

func (p managerSessions) Save(ctx context.Context, st SessionState) error {
	s, ok := st.(*session.Session)
	if !ok {
		return errForeignSession
	}
	return p.manager.Save(ctx, s)
}
