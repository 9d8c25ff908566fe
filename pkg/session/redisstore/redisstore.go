// Package redisstore keeps sessions in Redis. Keys are derived from a BLAKE2b
// digest of the token, so a dump of the keyspace does not reveal live tokens.
package redisstore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/dmitrymomot/casekit/pkg/session"
)

// Store implements session.Store on a go-redis client.
type Store struct {
	client redis.UniversalClient
	prefix string
}

// New creates a store writing keys under prefix + "session:".
func New(client redis.UniversalClient, prefix string) *Store {
	if client == nil {
		panic("redisstore: client cannot be nil")
	}
	return &Store{client: client, prefix: prefix + "session:"}
}

// Key returns the Redis key for token.
func (s *Store) Key(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return s.prefix + hex.EncodeToString(sum[:])
}

func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.Token == "" {
		return session.ErrInvalidSession
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return session.ErrSessionExpired
	}

	payload, err := encode(sess)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.Key(sess.Token), payload, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, token string) (*session.Session, error) {
	payload, err := s.client.Get(ctx, s.Key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	var sess session.Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("redisstore: decode session: %w", err)
	}
	sess.Token = token

	if sess.IsExpired() {
		return nil, session.ErrSessionExpired
	}
	return &sess, nil
}

// Update overwrites an existing session and resets its TTL to the session expiry.
func (s *Store) Update(ctx context.Context, sess *session.Session) error {
	if sess == nil || sess.Token == "" {
		return session.ErrInvalidSession
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return session.ErrSessionExpired
	}

	payload, err := encode(sess)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, s.Key(sess.Token), payload, ttl).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return session.ErrSessionNotFound
	}
	return nil
}

func (s *Store) UpdateActivity(ctx context.Context, token string, lastActivity time.Time) error {
	sess, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	sess.LastActivityAt = lastActivity

	payload, err := encode(sess)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, s.Key(token), payload, redis.KeepTTL).Result()
	if err != nil {
		return unavailable(err)
	}
	if !ok {
		return session.ErrSessionNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.Key(token)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis expires keys on its own.
func (s *Store) DeleteExpired(context.Context) error { return nil }

// encode serializes sess without its token.
func encode(sess *session.Session) ([]byte, error) {
	c := sess.Clone()
	c.Token = ""
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("redisstore: encode session: %w", err)
	}
	return payload, nil
}

func unavailable(err error) error {
	return errors.Join(session.ErrStoreUnavailable, err)
}
