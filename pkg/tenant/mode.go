package tenant

import (
	"strings"
	"sync/atomic"
)

// Mode selects between legacy single-organization behavior and full isolation.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// ParseMode parses a mode name. Accepts the long forms "single-tenant" and "multi-tenant" too.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "single-tenant", "single_tenant":
		return ModeSingle, nil
	case "multi", "multi-tenant", "multi_tenant":
		return ModeMulti, nil
	default:
		return "", ErrInvalidMode
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so Mode can be read from env.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Mode) String() string { return string(m) }

// ModeSource yields the operational mode. Components read it on every call
// and never cache the result.
type ModeSource interface {
	Mode() Mode
}

// StaticMode is a ModeSource fixed at construction.
type StaticMode Mode

func (s StaticMode) Mode() Mode { return Mode(s) }

// ModeFunc adapts a function to ModeSource.
type ModeFunc func() Mode

func (f ModeFunc) Mode() Mode { return f() }

// SwitchableMode is a ModeSource that can be flipped between test cases.
// Safe for concurrent use. Servers use StaticMode.
type SwitchableMode struct {
	v atomic.Value
}

// NewSwitchableMode returns a SwitchableMode starting at m.
func NewSwitchableMode(m Mode) *SwitchableMode {
	s := &SwitchableMode{}
	s.v.Store(m)
	return s
}

func (s *SwitchableMode) Mode() Mode {
	if m, ok := s.v.Load().(Mode); ok {
		return m
	}
	return ModeMulti
}

// Set replaces the current mode.
func (s *SwitchableMode) Set(m Mode) { s.v.Store(m) }
