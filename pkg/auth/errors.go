package auth

import "errors"

var (
	ErrMissingSecret   = errors.New("auth: missing signing secret")
	ErrMissingToken    = errors.New("auth: missing token")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrExpiredToken    = errors.New("auth: token is expired")
	ErrInvalidSubject  = errors.New("auth: subject is not a user id")
	ErrUnauthenticated = errors.New("auth: authentication required")
)
