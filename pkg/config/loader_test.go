package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/casekit/pkg/config"
)

type serverConfig struct {
	Addr    string        `env:"ADDR" envDefault:":8080"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
	Store   string        `env:"STORE" envDefault:"memory"`
	PGURL   string        `env:"PG_URL"`
}

func (c serverConfig) Validate() error {
	if c.Store == "postgres" && c.PGURL == "" {
		return errors.New("PG_URL is required for the postgres store")
	}
	return nil
}

type requiredConfig struct {
	Secret string `env:"SECRET,required"`
}

func TestParse(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse[serverConfig](config.WithEnvironment(map[string]string{"TIMEOUT": "2s"}))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 2*time.Second, cfg.Timeout)

	cfg, err = config.Parse[serverConfig](
		config.WithPrefix("CASE_"),
		config.WithEnvironment(map[string]string{"CASE_STORE": "postgres", "CASE_PG_URL": "postgres://x"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	_, err := config.Parse[serverConfig](config.WithEnvironment(map[string]string{"TIMEOUT": "soon"}))
	assert.ErrorIs(t, err, config.ErrParsingConfig)

	_, err = config.Parse[serverConfig](config.WithEnvironment(map[string]string{"STORE": "postgres"}))
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = config.Parse[requiredConfig](config.WithEnvironment(map[string]string{}))
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoadCachesPerType(t *testing.T) {
	config.ResetCache()
	t.Cleanup(config.ResetCache)
	t.Setenv("LOADTEST_ADDR", ":9000")

	var first serverConfig
	require.NoError(t, config.Load(&first, config.WithPrefix("LOADTEST_")))
	assert.Equal(t, ":9000", first.Addr)

	t.Setenv("LOADTEST_ADDR", ":9001")
	var cached serverConfig
	require.NoError(t, config.Load(&cached, config.WithPrefix("LOADTEST_")))
	assert.Equal(t, ":9000", cached.Addr)

	config.ResetCache()
	var fresh serverConfig
	require.NoError(t, config.Load(&fresh, config.WithPrefix("LOADTEST_")))
	assert.Equal(t, ":9001", fresh.Addr)

	assert.ErrorIs(t, config.Load[serverConfig](nil), config.ErrNilPointer)
}

func TestLoadRetriesAfterFailure(t *testing.T) {
	config.ResetCache()
	t.Cleanup(config.ResetCache)

	var cfg requiredConfig
	assert.ErrorIs(t, config.Load(&cfg, config.WithPrefix("RETRYTEST_")), config.ErrParsingConfig)
	assert.Panics(t, func() { config.MustLoad(&cfg, config.WithPrefix("RETRYTEST_")) })

	t.Setenv("RETRYTEST_SECRET", "s3cret")
	require.NoError(t, config.Load(&cfg, config.WithPrefix("RETRYTEST_")))
	assert.Equal(t, "s3cret", cfg.Secret)
}

func TestLoadConcurrent(t *testing.T) {
	config.ResetCache()
	t.Cleanup(config.ResetCache)
	t.Setenv("CONCTEST_ADDR", ":7000")

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var cfg serverConfig
			assert.NoError(t, config.Load(&cfg, config.WithPrefix("CONCTEST_")))
			assert.Equal(t, ":7000", cfg.Addr)
		}()
	}
	wg.Wait()
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.test")
	require.NoError(t, os.WriteFile(path, []byte("ENVFILETEST_STORE=redis\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("ENVFILETEST_STORE") })

	require.NoError(t, config.LoadEnv(path))
	cfg, err := config.Parse[serverConfig](config.WithPrefix("ENVFILETEST_"))
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Store)

	assert.ErrorIs(t, config.LoadEnv(filepath.Join(t.TempDir(), "missing")), config.ErrLoadingEnvFile)
}
