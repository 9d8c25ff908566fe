package tenant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/casekit/pkg/tenant"
)

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	valid := map[string]string{
		"moh":        "MOH",
		"  Moj ":     "MOJ",
		"ocm-2":      "OCM-2",
		"dept_north": "DEPT_NORTH",
		"7A":         "7A",
	}
	for in, want := range valid {
		got, err := tenant.NormalizeCode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "   ", "-moh", "mo h", "a.b", "../x", "ÄBC", "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456"} {
		_, err := tenant.NormalizeCode(in)
		assert.ErrorIs(t, err, tenant.ErrInvalidCode, in)
	}
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]tenant.Role{
		"admin":    tenant.RoleAdmin,
		" Manager": tenant.RoleManager,
		"STAFF":    tenant.RoleStaff,
		"viewer":   tenant.RoleViewer,
	} {
		got, err := tenant.ParseRole(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := tenant.ParseRole("owner")
	assert.ErrorIs(t, err, tenant.ErrInvalidRole)
}

func TestHasModule(t *testing.T) {
	t.Parallel()

	org := &tenant.Organization{Modules: []string{"cases", "reports"}}
	assert.True(t, org.HasModule("cases"))
	assert.False(t, org.HasModule("billing"))

	var none *tenant.Organization
	assert.False(t, none.HasModule("cases"))
}
