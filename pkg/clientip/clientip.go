package clientip

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// DefaultHeaders is the header priority used when Config.Headers is empty.
var DefaultHeaders = []string{
	"CF-Connecting-IP",
	"DO-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// Config controls which forwarded headers are honored.
type Config struct {
	// TrustedProxies lists CIDRs or single addresses of proxies allowed to set
	// forwarded headers. Empty means every peer is trusted.
	TrustedProxies []string `env:"CLIENTIP_TRUSTED_PROXIES" envSeparator:","`
	Headers        []string `env:"CLIENTIP_HEADERS" envSeparator:","`
}

// Extractor resolves the client address of a request.
type Extractor struct {
	headers []string
	trusted []netip.Prefix
}

// New builds an extractor from cfg.
func New(cfg Config) (*Extractor, error) {
	e := &Extractor{headers: DefaultHeaders}
	if len(cfg.Headers) > 0 {
		e.headers = make([]string, 0, len(cfg.Headers))
		for _, h := range cfg.Headers {
			if h = strings.TrimSpace(h); h != "" {
				e.headers = append(e.headers, http.CanonicalHeaderKey(h))
			}
		}
	}

	for _, raw := range cfg.TrustedProxies {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		prefix, err := parsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProxy, raw)
		}
		e.trusted = append(e.trusted, prefix)
	}
	return e, nil
}

var defaultExtractor = &Extractor{headers: DefaultHeaders}

// GetIP returns the client's IP address trusting every peer's forwarded headers.
// Priority: CF-Connecting-IP, DO-Connecting-IP, X-Forwarded-For (first valid
// entry), X-Real-IP, then RemoteAddr.
func GetIP(r *http.Request) string {
	return defaultExtractor.IP(r)
}

// IP returns the client address for r. Forwarded headers are only read when
// the direct peer is a trusted proxy.
func (e *Extractor) IP(r *http.Request) string {
	peer := remoteIP(r.RemoteAddr)
	if len(e.trusted) > 0 && !e.isTrusted(peer) {
		return peer
	}

	for _, h := range e.headers {
		value := r.Header.Get(h)
		if value == "" {
			continue
		}
		if h == "X-Forwarded-For" {
			if ip := e.fromForwardedFor(value); ip != "" {
				return ip
			}
			continue
		}
		if ip := parseIP(value); ip != "" {
			return ip
		}
	}
	return peer
}

// fromForwardedFor picks the first valid entry when all peers are trusted,
// otherwise the right-most entry that is not a trusted proxy.
func (e *Extractor) fromForwardedFor(value string) string {
	if len(e.trusted) == 0 {
		for ip := range strings.SplitSeq(value, ",") {
			if parsed := parseIP(ip); parsed != "" {
				return parsed
			}
		}
		return ""
	}

	parts := strings.Split(value, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		parsed := parseIP(parts[i])
		if parsed == "" {
			return ""
		}
		if !e.isTrusted(parsed) {
			return parsed
		}
	}
	return ""
}

func (e *Extractor) isTrusted(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range e.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func parsePrefix(raw string) (netip.Prefix, error) {
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

func remoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return parseIP(remoteAddr)
	}
	return parseIP(host)
}

// parseIP validates and normalizes an IP address string.
// Returns empty string if the IP is invalid.
func parseIP(ipStr string) string {
	ipStr = strings.TrimSpace(ipStr)
	if ipStr == "" {
		return ""
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}
	return ip.String()
}
