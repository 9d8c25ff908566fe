package session

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring the Manager
type Option func(*Manager)

// WithStore sets a custom session store
func WithStore(store Store) Option {
	return func(m *Manager) {
		m.store = store
	}
}

// WithTransport sets a custom session transport
func WithTransport(transport Transport) Option {
	return func(m *Manager) {
		m.transport = transport
	}
}

// WithConfig sets custom configuration
func WithConfig(config Config) Option {
	return func(m *Manager) {
		m.config = config
	}
}

// WithIdleTimeout sets the idle timeout for sessions
func WithIdleTimeout(anon, auth time.Duration) Option {
	return func(m *Manager) {
		m.config.AnonIdleTimeout = anon
		m.config.AuthIdleTimeout = auth
	}
}

// WithMaxLifetime sets the maximum lifetime for sessions
func WithMaxLifetime(anon, auth time.Duration) Option {
	return func(m *Manager) {
		m.config.AnonMaxLifetime = anon
		m.config.AuthMaxLifetime = auth
	}
}

// WithFingerprint sets the fingerprint function
func WithFingerprint(fn FingerprintFunc) Option {
	return func(m *Manager) {
		m.fingerprintFunc = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}
