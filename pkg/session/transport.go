package session

import (
	"net/http"
	"strings"
	"time"
)

// Transport defines how session tokens are transmitted between client and server
type Transport interface {
	GetToken(r *http.Request) (string, error)
	SetToken(w http.ResponseWriter, token string, ttl time.Duration) error
	ClearToken(w http.ResponseWriter) error
}

// CookieTransport carries the opaque token in an HttpOnly cookie.
type CookieTransport struct {
	name   string
	path   string
	domain string
	secure bool
}

// NewCookieTransport creates a cookie transport from the cookie fields of cfg.
func NewCookieTransport(cfg Config) *CookieTransport {
	t := &CookieTransport{name: cfg.CookieName, path: cfg.CookiePath, domain: cfg.CookieDomain, secure: cfg.SecureCookies}
	if t.name == "" {
		t.name = "sid"
	}
	if t.path == "" {
		t.path = "/"
	}
	return t
}

func (t *CookieTransport) GetToken(r *http.Request) (string, error) {
	c, err := r.Cookie(t.name)
	if err != nil || c.Value == "" {
		return "", ErrSessionNotFound
	}
	return c.Value, nil
}

func (t *CookieTransport) SetToken(w http.ResponseWriter, token string, ttl time.Duration) error {
	http.SetCookie(w, &http.Cookie{
		Name:     t.name,
		Value:    token,
		Path:     t.path,
		Domain:   t.domain,
		MaxAge:   int(ttl.Seconds()),
		Secure:   t.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (t *CookieTransport) ClearToken(w http.ResponseWriter) error {
	http.SetCookie(w, &http.Cookie{
		Name:     t.name,
		Value:    "",
		Path:     t.path,
		Domain:   t.domain,
		MaxAge:   -1,
		Secure:   t.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// HeaderTransport carries the token in a request/response header, for API clients.
type HeaderTransport struct {
	name string
}

// NewHeaderTransport creates a header transport using name, e.g. "X-Session-Token".
func NewHeaderTransport(name string) *HeaderTransport {
	return &HeaderTransport{name: http.CanonicalHeaderKey(name)}
}

func (t *HeaderTransport) GetToken(r *http.Request) (string, error) {
	value := strings.TrimSpace(r.Header.Get(t.name))
	if value == "" {
		return "", ErrSessionNotFound
	}
	return value, nil
}

func (t *HeaderTransport) SetToken(w http.ResponseWriter, token string, ttl time.Duration) error {
	w.Header().Set(t.name, token)
	if ttl > 0 {
		w.Header().Set(t.name+"-Expires", time.Now().Add(ttl).UTC().Format(time.RFC3339))
	}
	return nil
}

func (t *HeaderTransport) ClearToken(w http.ResponseWriter) error {
	w.Header().Del(t.name)
	w.Header().Del(t.name + "-Expires")
	return nil
}

// CompositeTransport reads from the first transport holding a token and
// writes to all of them.
type CompositeTransport struct {
	transports []Transport
}

func NewCompositeTransport(transports ...Transport) *CompositeTransport {
	return &CompositeTransport{transports: transports}
}

func (t *CompositeTransport) GetToken(r *http.Request) (string, error) {
	for _, tr := range t.transports {
		if token, err := tr.GetToken(r); err == nil && token != "" {
			return token, nil
		}
	}
	return "", ErrSessionNotFound
}

func (t *CompositeTransport) SetToken(w http.ResponseWriter, token string, ttl time.Duration) error {
	var lastErr error
	for _, tr := range t.transports {
		if err := tr.SetToken(w, token, ttl); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (t *CompositeTransport) ClearToken(w http.ResponseWriter) error {
	var lastErr error
	for _, tr := range t.transports {
		if err := tr.ClearToken(w); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
