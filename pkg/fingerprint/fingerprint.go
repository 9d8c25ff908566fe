package fingerprint

import (
	"encoding/hex"
	"net/http"
	"slices"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/dmitrymomot/casekit/pkg/clientip"
)

// DefaultHeaders are the request headers folded into a fingerprint.
// They stay stable across requests from one browser profile.
var DefaultHeaders = []string{"User-Agent", "Accept-Language", "Accept-Encoding"}

type generator struct {
	headers []string
	withIP  bool
}

// Option configures a fingerprint Func.
type Option func(*generator)

// WithHeaders replaces DefaultHeaders.
func WithHeaders(names ...string) Option {
	return func(g *generator) {
		g.headers = slices.Clone(names)
	}
}

// WithIP adds the client address. Clients switching networks lose their sessions.
func WithIP() Option {
	return func(g *generator) {
		g.withIP = true
	}
}

// New returns a function hashing the configured request attributes into a
// 32 character hex string.
func New(opts ...Option) func(r *http.Request) string {
	g := &generator{headers: DefaultHeaders}
	for _, opt := range opts {
		opt(g)
	}

	return func(r *http.Request) string {
		var b strings.Builder
		for _, name := range g.headers {
			b.WriteString(strings.ToLower(name))
			b.WriteByte('=')
			b.WriteString(strings.TrimSpace(r.Header.Get(name)))
			b.WriteByte('\n')
		}
		if g.withIP {
			ip := clientip.GetIPFromContext(r.Context())
			if ip == "" {
				ip = clientip.GetIP(r)
			}
			b.WriteString("ip=")
			b.WriteString(ip)
		}

		sum := blake2b.Sum256([]byte(b.String()))
		return hex.EncodeToString(sum[:16])
	}
}

// Generate fingerprints r with the default headers.
func Generate(r *http.Request) string {
	return New()(r)
}
