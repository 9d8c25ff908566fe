package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/casekit/pkg/logger"
)

// FingerprintFunc generates a device fingerprint from the request
type FingerprintFunc func(r *http.Request) string

// Manager handles session operations
type Manager struct {
	store           Store
	transport       Transport
	config          Config
	fingerprintFunc FingerprintFunc
	logger          *slog.Logger
	activityChan    chan activityUpdate
	done            chan struct{}
	wg              sync.WaitGroup
	closeOnce       sync.Once
}

type activityUpdate struct {
	token string
	time  time.Time
}

// New creates a session manager. Without WithStore sessions live in a
// MemoryStore; without WithTransport tokens travel in a cookie.
func New(opts ...Option) *Manager {
	m := &Manager{
		config:       DefaultConfig(),
		logger:       slog.Default(),
		activityChan: make(chan activityUpdate, 1000),
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		m.store = NewMemoryStore(m.config.CleanupInterval)
	}
	if m.transport == nil {
		m.transport = NewCookieTransport(m.config)
	}

	m.wg.Add(1)
	go m.activityWorker()

	return m
}

// NewFromConfig creates a Manager from cfg.
func NewFromConfig(cfg Config, opts ...Option) *Manager {
	return New(append([]Option{WithConfig(cfg)}, opts...)...)
}

// Ensure creates or retrieves a session
func (m *Manager) Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (*Session, error) {
	session, err := m.Get(ctx, r)
	if err == nil {
		if m.shouldUpdateActivity(session) {
			m.queueActivityUpdate(session.Token)
		}
		return session, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		_ = m.transport.ClearToken(w)
	}

	session, err = m.createSession(ctx, nil, r)
	if err != nil {
		return nil, err
	}

	idle, _ := m.config.GetTimeouts(false)
	if err := m.transport.SetToken(w, session.Token, idle); err != nil {
		_ = m.store.Delete(ctx, session.Token)
		return nil, err
	}

	return session, nil
}

// Get retrieves an existing, valid session
func (m *Manager) Get(ctx context.Context, r *http.Request) (*Session, error) {
	token, err := m.transport.GetToken(r)
	if err != nil {
		return nil, err
	}

	session, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := m.validate(session, r); err != nil {
		return nil, err
	}

	return session, nil
}

// Save persists changes made to session data.
func (m *Manager) Save(ctx context.Context, session *Session) error {
	if session == nil {
		return ErrInvalidSession
	}
	return m.store.Update(ctx, session)
}

// Authenticate binds userID to the session and rotates its token.
func (m *Manager) Authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request, userID uuid.UUID) (*Session, error) {
	session, err := m.Get(ctx, r)
	if err != nil {
		session, err = m.createSession(ctx, &userID, r)
		if err != nil {
			return nil, err
		}
	} else {
		newToken, err := generateToken()
		if err != nil {
			return nil, err
		}

		_ = m.store.Delete(ctx, session.Token)

		session.UserID = &userID
		session.Token = newToken
		idle, max := m.config.GetTimeouts(true)
		session.ExpiresAt = calculateExpiry(session.CreatedAt, time.Now(), idle, max)
		session.Touch()

		if err := m.store.Create(ctx, session); err != nil {
			return nil, err
		}
	}

	idle, _ := m.config.GetTimeouts(true)
	if err := m.transport.SetToken(w, session.Token, idle); err != nil {
		return nil, err
	}
	return session, nil
}

// Destroy deletes the session
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if token, err := m.transport.GetToken(r); err == nil && token != "" {
		_ = m.store.Delete(ctx, token)
	}
	return m.transport.ClearToken(w)
}

// Refresh extends the session expiry
func (m *Manager) Refresh(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	session, err := m.Get(ctx, r)
	if err != nil {
		return err
	}

	idle, max := m.config.GetTimeouts(session.IsAuthenticated())
	session.ExpiresAt = calculateExpiry(session.CreatedAt, time.Now(), idle, max)
	session.Touch()

	if err := m.store.Update(ctx, session); err != nil {
		return err
	}

	return m.transport.SetToken(w, session.Token, idle)
}

// Close stops the activity worker after draining queued updates.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		if c, ok := m.store.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	})
	return nil
}

func (m *Manager) createSession(ctx context.Context, userID *uuid.UUID, r *http.Request) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	idle, max := m.config.GetTimeouts(userID != nil)
	now := time.Now()

	var fingerprint string
	if m.fingerprintFunc != nil {
		fingerprint = m.fingerprintFunc(r)
	}

	session := NewSession(token, userID, fingerprint, calculateExpiry(now, now, idle, max).Sub(now))
	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}

func (m *Manager) validate(session *Session, r *http.Request) error {
	if session.IsExpired() {
		return ErrSessionExpired
	}
	if m.fingerprintFunc != nil && !session.ValidateFingerprint(m.fingerprintFunc(r)) {
		return ErrInvalidSession
	}
	return nil
}

func (m *Manager) shouldUpdateActivity(session *Session) bool {
	return time.Since(session.LastActivityAt) >= m.config.ActivityUpdateThreshold
}

// queueActivityUpdate never blocks; updates are dropped when the queue is full.
func (m *Manager) queueActivityUpdate(token string) {
	select {
	case m.activityChan <- activityUpdate{token: token, time: time.Now()}:
	default:
	}
}

func (m *Manager) activityWorker() {
	defer m.wg.Done()

	apply := func(u activityUpdate) {
		if err := m.store.UpdateActivity(context.Background(), u.token, u.time); err != nil && !errors.Is(err, ErrSessionNotFound) {
			m.logger.Warn("session activity update failed", logger.Component("session"), logger.Error(err))
		}
	}

	for {
		select {
		case u := <-m.activityChan:
			apply(u)
		case <-m.done:
			for {
				select {
				case u := <-m.activityChan:
					apply(u)
				default:
					return
				}
			}
		}
	}
}

// calculateExpiry returns the earlier of the idle deadline and the max lifetime.
func calculateExpiry(createdAt, now time.Time, idle, max time.Duration) time.Time {
	idleExpiry := now.Add(idle)
	maxExpiry := createdAt.Add(max)
	if maxExpiry.Before(idleExpiry) {
		return maxExpiry
	}
	return idleExpiry
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
