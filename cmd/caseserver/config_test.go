package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/casekit/pkg/config"
	"github.com/dmitrymomot/casekit/pkg/session"
	"github.com/dmitrymomot/casekit/pkg/tenant"
)

func TestAppConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, nil)

	assert.Equal(t, tenant.ModeMulti, cfg.Tenancy.Mode)
	assert.Equal(t, storeMemory, cfg.Backends.TenantStore)
	assert.Equal(t, cacheLRU, cfg.Backends.Cache)
	assert.Equal(t, []string{sinkLog}, cfg.Backends.AuditSinks)
	assert.Equal(t, session.StoreMemory, cfg.Session.Store)
	assert.False(t, cfg.needsPostgres())
	assert.False(t, cfg.needsRedis())
	assert.False(t, cfg.needsSink(sinkMongo))
}

func TestAppConfigBackends(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, map[string]string{
		"TENANCY_STORE": "postgres",
		"SESSION_STORE": "redis",
		"AUDIT_SINKS":   "log,mongo,opensearch",
	})

	assert.True(t, cfg.needsPostgres())
	assert.True(t, cfg.needsRedis())
	assert.True(t, cfg.needsSink(sinkMongo))
	assert.True(t, cfg.needsSink(sinkOpenSearch))
}

func TestAppConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{name: "unknown store", vars: map[string]string{"TENANCY_STORE": "sqlite"}, want: "TENANCY_STORE"},
		{name: "unknown cache", vars: map[string]string{"TENANCY_CACHE": "memcached"}, want: "TENANCY_CACHE"},
		{name: "unknown session store", vars: map[string]string{"SESSION_STORE": "file"}, want: "SESSION_STORE"},
		{name: "unknown audit sink", vars: map[string]string{"AUDIT_SINKS": "log,kafka"}, want: "AUDIT_SINKS"},
		{name: "short secret", vars: map[string]string{"JWT_SECRET": "short"}, want: "JWT_SECRET"},
		{name: "unknown mode", vars: map[string]string{"TENANCY_MODE": "federated"}, want: "Mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vars := map[string]string{"JWT_SECRET": testSecret}
			for k, v := range tt.vars {
				vars[k] = v
			}

			_, err := config.Parse[appConfig](config.WithEnvironment(vars))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAppConfigRequiresSecret(t *testing.T) {
	t.Parallel()

	_, err := config.Parse[appConfig](config.WithEnvironment(map[string]string{}))
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}
