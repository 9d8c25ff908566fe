package logger_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/casekit/pkg/logger"
)

func TestGroup(t *testing.T) {
	attr := logger.Group("req", slog.String("id", "1"), slog.Int("n", 2))
	require.Equal(t, "req", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "id", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

func TestErrors(t *testing.T) {
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, err1, g[0].Value.Any())
	assert.Equal(t, err2, g[1].Value.Any())

	empty := logger.Errors(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	empty := logger.Error(nil)
	assert.True(t, empty.Equal(slog.Attr{}))
}

func TestUserID(t *testing.T) {
	attr := logger.UserID("123")
	require.Equal(t, "user_id", attr.Key)
	assert.Equal(t, "123", attr.Value.Any())
}

func TestOrgCode(t *testing.T) {
	attr := logger.OrgCode("MOH")
	require.Equal(t, "org_code", attr.Key)
	assert.Equal(t, "MOH", attr.Value.String())

	assert.Equal(t, "none", logger.OrgCode("").Value.String())
}

func TestReasonAndBypass(t *testing.T) {
	attr := logger.Reason("no_membership")
	require.Equal(t, "reason", attr.Key)
	assert.Equal(t, "no_membership", attr.Value.String())
	assert.True(t, logger.Reason("").Equal(slog.Attr{}))

	attr = logger.Bypass("superuser_bypass")
	require.Equal(t, "bypass", attr.Key)
	assert.True(t, logger.Bypass("").Equal(slog.Attr{}))
}

func TestLifecycleAttrs(t *testing.T) {
	assert.Equal(t, "tenant_source", logger.Source("url").Key)
	assert.Equal(t, "decision", logger.Decision("allow").Key)
	assert.Equal(t, "phase", logger.Phase("denied").Key)
	assert.Equal(t, "component", logger.Component("tenant").Key)
}

func TestRole(t *testing.T) {
	attr := logger.Role("admin")
	require.Equal(t, "role", attr.Key)
	assert.Equal(t, "admin", attr.Value.Any())
}

func TestRequestID(t *testing.T) {
	attr := logger.RequestID("abc")
	require.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "abc", attr.Value.Any())
}
