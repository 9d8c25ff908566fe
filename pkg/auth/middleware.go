package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/casekit/pkg/logger"
)

// TokenExtractorFunc extracts a raw token from a request. It returns
// ErrMissingToken when the request carries none.
type TokenExtractorFunc func(r *http.Request) (string, error)

// Option configures Middleware.
type Option func(*middlewareConfig)

type middlewareConfig struct {
	extractors []TokenExtractorFunc
	logger     *slog.Logger
}

// WithExtractors replaces the default bearer extractor. The first extractor
// that finds a token wins.
func WithExtractors(extractors ...TokenExtractorFunc) Option {
	return func(c *middlewareConfig) {
		if len(extractors) > 0 {
			c.extractors = extractors
		}
	}
}

// WithLogger sets the logger for rejected tokens.
func WithLogger(l *slog.Logger) Option {
	return func(c *middlewareConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Middleware installs the identity of a valid token in the request context.
// Requests without a token pass through anonymously; invalid tokens get 401.
func Middleware(svc *Service, opts ...Option) func(http.Handler) http.Handler {
	cfg := middlewareConfig{
		extractors: []TokenExtractorFunc{BearerTokenExtractor},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := extract(r, cfg.extractors)
			if errors.Is(err, ErrMissingToken) {
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				unauthorized(w)
				return
			}

			id, err := svc.Verify(token)
			if err != nil {
				cfg.logger.DebugContext(r.Context(), "token rejected",
					logger.Component("auth"), logger.Error(err))
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAuth rejects requests without an identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := FromContext(r.Context()); !ok {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extract(r *http.Request, extractors []TokenExtractorFunc) (string, error) {
	for _, fn := range extractors {
		token, err := fn(r)
		if errors.Is(err, ErrMissingToken) {
			continue
		}
		return token, err
	}
	return "", ErrMissingToken
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}

// BearerTokenExtractor reads "Authorization: Bearer <token>".
func BearerTokenExtractor(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

// CookieTokenExtractor reads the token from the named cookie.
func CookieTokenExtractor(name string) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		c, err := r.Cookie(name)
		if err != nil || c.Value == "" {
			return "", ErrMissingToken
		}
		return c.Value, nil
	}
}

// HeaderTokenExtractor reads the raw token from a custom header.
func HeaderTokenExtractor(name string) TokenExtractorFunc {
	return func(r *http.Request) (string, error) {
		if token := r.Header.Get(name); token != "" {
			return token, nil
		}
		return "", ErrMissingToken
	}
}
