package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Validator is implemented by configs that check cross-field constraints
// after parsing, e.g. "postgres store requires a connection URL".
type Validator interface {
	Validate() error
}

// Option adjusts how the environment is parsed.
type Option func(*env.Options)

// WithPrefix reads every variable with prefix prepended, e.g. "CASEKIT_".
func WithPrefix(prefix string) Option {
	return func(o *env.Options) { o.Prefix = prefix }
}

// WithEnvironment parses from vars instead of the process environment.
func WithEnvironment(vars map[string]string) Option {
	return func(o *env.Options) { o.Environment = vars }
}

type cacheEntry struct {
	once  sync.Once
	value any
	err   error
}

var (
	cacheMu sync.Mutex
	cache   = map[string]*cacheEntry{}

	dotenvOnce sync.Once
)

// Load parses the environment into v once per config type and prefix, and
// serves later calls for the same type from cache. A .env file in the working
// directory is applied on first use when present.
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() { _ = godotenv.Load() })

	o := buildOptions(opts)
	key := reflect.TypeFor[T]().String() + "|" + o.Prefix

	cacheMu.Lock()
	entry, ok := cache[key]
	if !ok {
		entry = &cacheEntry{}
		cache[key] = entry
	}
	cacheMu.Unlock()

	entry.once.Do(func() {
		parsed, err := parse[T](o)
		if err != nil {
			entry.err = err
			return
		}
		entry.value = parsed
	})

	if entry.err != nil {
		// Failed loads are retried on the next call.
		cacheMu.Lock()
		if cache[key] == entry {
			delete(cache, key)
		}
		cacheMu.Unlock()
		return entry.err
	}
	*v = entry.value.(T)
	return nil
}

// MustLoad works like Load but panics on failure.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// Parse parses a fresh T without touching the cache.
func Parse[T any](opts ...Option) (T, error) {
	return parse[T](buildOptions(opts))
}

// LoadEnv applies the given .env files to the process environment.
// Variables already set are not overridden.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}

// ResetCache forgets every cached config. Meant for tests.
func ResetCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = map[string]*cacheEntry{}
}

func buildOptions(opts []Option) env.Options {
	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func parse[T any](o env.Options) (T, error) {
	var v T
	if err := env.ParseWithOptions(&v, o); err != nil {
		return v, errors.Join(ErrParsingConfig, err)
	}
	if val, ok := any(&v).(Validator); ok {
		if err := val.Validate(); err != nil {
			return v, errors.Join(ErrInvalidConfig, err)
		}
	}
	return v, nil
}
