package session

import "errors"

var (
	// ErrInvalidSession indicates a nil session or a fingerprint mismatch
	ErrInvalidSession = errors.New("session.invalid")

	ErrSessionExpired  = errors.New("session.expired")
	ErrSessionNotFound = errors.New("session.not_found")
	ErrTokenGeneration = errors.New("session.token_generation_failed")

	// ErrStoreUnavailable wraps backend failures of persistent stores
	ErrStoreUnavailable = errors.New("session.store_unavailable")
)
