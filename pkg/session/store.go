package session

import (
	"context"
	"time"
)

// Store persists sessions keyed by token. Implementations must return
// ErrSessionNotFound for unknown tokens and never hand out shared Session
// values.
type Store interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Update(ctx context.Context, session *Session) error
	UpdateActivity(ctx context.Context, token string, lastActivity time.Time) error
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
}
