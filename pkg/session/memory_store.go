package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps sessions in process memory. Suitable for a single
// instance and tests; use redisstore when running more than one replica.
//
// Sessions are copied on the way in and on the way out, so a tenant
// selection written by one request never shows up in another request's
// Session value before Update.
type MemoryStore struct {
	mu    sync.RWMutex
	byTok map[string]*Session

	stop     chan struct{}
	stopOnce sync.Once
}

// MemoryStats is a point-in-time count of stored sessions.
type MemoryStats struct {
	Total         int
	Authenticated int
	Anonymous     int
}

// NewMemoryStore creates a store. A positive sweepEvery starts a goroutine
// dropping expired sessions at that interval; Close stops it.
func NewMemoryStore(sweepEvery time.Duration) *MemoryStore {
	s := &MemoryStore{
		byTok: make(map[string]*Session),
		stop:  make(chan struct{}),
	}
	if sweepEvery > 0 {
		go s.sweep(sweepEvery)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	if sess == nil || sess.Token == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	s.byTok[sess.Token] = sess.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, token string) (*Session, error) {
	s.mu.RLock()
	var out *Session
	if stored, ok := s.byTok[token]; ok {
		out = stored.Clone()
	}
	s.mu.RUnlock()

	switch {
	case out == nil:
		return nil, ErrSessionNotFound
	case out.IsExpired():
		_ = s.Delete(ctx, token)
		return nil, ErrSessionExpired
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, sess *Session) error {
	if sess == nil || sess.Token == "" {
		return ErrInvalidSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byTok[sess.Token]; !ok {
		return ErrSessionNotFound
	}
	s.byTok[sess.Token] = sess.Clone()
	return nil
}

func (s *MemoryStore) UpdateActivity(_ context.Context, token string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byTok[token]
	if !ok {
		return ErrSessionNotFound
	}
	stored.LastActivityAt = at
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.byTok, token)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DeleteExpired(context.Context) error {
	now := time.Now()
	s.remove(func(sess *Session) bool { return now.After(sess.ExpiresAt) })
	return nil
}

// DeleteByUserID drops every session bound to userID, e.g. after the user's
// memberships were revoked.
func (s *MemoryStore) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	s.remove(func(sess *Session) bool {
		return sess.UserID != nil && *sess.UserID == userID
	})
	return nil
}

// Stats counts the stored sessions, expired ones included until swept.
func (s *MemoryStore) Stats() MemoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := MemoryStats{Total: len(s.byTok)}
	for _, sess := range s.byTok {
		if sess.IsAuthenticated() {
			st.Authenticated++
		}
	}
	st.Anonymous = st.Total - st.Authenticated
	return st
}

// Close stops the sweeper. Safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) remove(match func(sess *Session) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, sess := range s.byTok {
		if match(sess) {
			delete(s.byTok, token)
		}
	}
}

func (s *MemoryStore) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = s.DeleteExpired(context.Background())
		case <-s.stop:
			return
		}
	}
}
