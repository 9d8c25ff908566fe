package logger

import (
	"log/slog"
	"strings"
)

// Config is the environment-driven logger configuration.
type Config struct {
	Service string `env:"APP_NAME" envDefault:"caseserver"`
	Env     string `env:"APP_ENV" envDefault:"development"`
	Level   string `env:"LOG_LEVEL"`
	Format  Format `env:"LOG_FORMAT"`
}

// FromConfig builds the option list for cfg: environment defaults first,
// then explicit level and format overrides.
func FromConfig(cfg Config) []Option {
	opts := []Option{WithEnvironment(cfg.Env, cfg.Service)}
	if lvl, ok := parseLevel(cfg.Level); ok {
		opts = append(opts, WithLevel(lvl))
	}
	if cfg.Format != "" {
		opts = append(opts, WithFormat(cfg.Format))
	}
	return opts
}

func parseLevel(s string) (slog.Level, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, false
	}
	return lvl, true
}
