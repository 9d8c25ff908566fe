package tenant_test

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/casekit/pkg/logger"
	"github.com/dmitrymomot/casekit/pkg/tenant"
)

func TestBindCurrentClear(t *testing.T) {
	t.Parallel()

	org := &tenant.Organization{ID: uuid.New(), Code: "MOH", Active: true, Modules: []string{"cases"}}
	ctx, release := tenant.Bind(context.Background(), tenant.Resolution{Organization: org, Source: tenant.SourceURL})

	got := tenant.Current(ctx)
	require.False(t, got.IsEmpty())
	assert.Equal(t, "MOH", got.OrganizationCode())
	assert.Equal(t, tenant.SourceURL, got.Source)

	// The binding is a snapshot.
	org.Code = "MOJ"
	org.Modules[0] = "billing"
	assert.Equal(t, "MOH", tenant.Current(ctx).OrganizationCode())
	assert.True(t, tenant.Current(ctx).Organization.HasModule("cases"))

	id, ok := tenant.OrganizationIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, org.ID, id)

	release()
	assert.True(t, tenant.Current(ctx).IsEmpty())
	assert.Equal(t, tenant.SourceNone, tenant.Current(ctx).Source)
	release()
	tenant.Clear(ctx)

	_, ok = tenant.OrganizationFromContext(ctx)
	assert.False(t, ok)
}

func TestCurrentWithoutBinding(t *testing.T) {
	t.Parallel()

	assert.True(t, tenant.Current(context.Background()).IsEmpty())
	//nolint:staticcheck // nil context is part of the contract
	assert.True(t, tenant.Current(nil).IsEmpty())
	assert.NotPanics(t, func() {
		tenant.Clear(context.Background())
		//nolint:staticcheck
		tenant.Clear(nil)
	})

	_, ok := tenant.OrganizationIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestMustOrganization(t *testing.T) {
	t.Parallel()

	assert.PanicsWithError(t, tenant.ErrNoOrganization.Error(), func() { tenant.MustOrganization(context.Background()) })

	org := &tenant.Organization{ID: uuid.New(), Code: "MOH"}
	ctx, release := tenant.Bind(context.Background(), tenant.Resolution{Organization: org, Source: tenant.SourceSession})
	defer release()
	assert.Equal(t, org.ID, tenant.MustOrganization(ctx).ID)
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithJSONFormatter(),
		logger.WithContextExtractors(tenant.LoggerExtractor()),
	)

	log.InfoContext(context.Background(), "unbound")
	assert.NotContains(t, buf.String(), "org_code")

	ctx, release := tenant.Bind(context.Background(), tenant.Resolution{
		Organization: &tenant.Organization{ID: uuid.New(), Code: "OCM"},
		Source:       tenant.SourcePrimaryMembership,
	})
	defer release()

	buf.Reset()
	log.InfoContext(ctx, "bound")
	assert.Contains(t, buf.String(), `"org_code":"OCM"`)
	assert.Contains(t, buf.String(), `"source":"primary-membership"`)
}

// Concurrent requests with randomized delays never observe each other's binding.
func TestBindingIsolation(t *testing.T) {
	t.Parallel()

	const workers = 64
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			code := fmt.Sprintf("ORG%d", i)
			ctx, release := tenant.Bind(context.Background(), tenant.Resolution{
				Organization: &tenant.Organization{ID: uuid.New(), Code: code},
				Source:       tenant.SourceURL,
			})
			defer release()

			for range 20 {
				time.Sleep(time.Duration(rand.IntN(200)) * time.Microsecond)
				if got := tenant.Current(ctx).OrganizationCode(); got != code {
					errs <- fmt.Errorf("worker %d saw %q", i, got)
					return
				}
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

}
