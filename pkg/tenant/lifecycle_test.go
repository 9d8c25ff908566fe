package tenant_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/casekit/pkg/tenant"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	allowed := [][2]tenant.Phase{
		{tenant.PhaseInit, tenant.PhaseResolved},
		{tenant.PhaseInit, tenant.PhaseDenied},
		{tenant.PhaseInit, tenant.PhaseFailed},
		{tenant.PhaseResolved, tenant.PhaseValidated},
		{tenant.PhaseResolved, tenant.PhaseDenied},
		{tenant.PhaseValidated, tenant.PhasePropagated},
		{tenant.PhasePropagated, tenant.PhaseHandlerExecuting},
		{tenant.PhaseHandlerExecuting, tenant.PhaseCleaned},
		{tenant.PhaseHandlerExecuting, tenant.PhaseFailed},
		{tenant.PhaseDenied, tenant.PhaseCleaned},
		{tenant.PhaseFailed, tenant.PhaseCleaned},
	}
	for _, tr := range allowed {
		assert.True(t, tenant.CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	forbidden := [][2]tenant.Phase{
		{tenant.PhaseInit, tenant.PhaseValidated},
		{tenant.PhaseInit, tenant.PhasePropagated},
		{tenant.PhaseResolved, tenant.PhaseHandlerExecuting},
		{tenant.PhaseValidated, tenant.PhaseDenied},
		{tenant.PhaseDenied, tenant.PhaseHandlerExecuting},
		{tenant.PhaseFailed, tenant.PhaseResolved},
		{tenant.PhaseCleaned, tenant.PhaseInit},
		{tenant.PhaseCleaned, tenant.PhaseResolved},
	}
	for _, tr := range forbidden {
		assert.False(t, tenant.CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}
