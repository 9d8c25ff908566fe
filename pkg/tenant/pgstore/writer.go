package pgstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/casekit/pkg/pg"
	"github.com/dmitrymomot/casekit/pkg/tenant"
)

// Writer upserts organizations and memberships. It implements tenant.SeedWriter
// and is used by provisioning, never on the request path.
type Writer struct {
	*Directory
	pool *pgxpool.Pool
}

// NewWriter creates a writer on pool.
func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{Directory: NewDirectory(pool, 0), pool: pool}
}

// PutOrganization inserts or updates an organization keyed by code.
func (w *Writer) PutOrganization(ctx context.Context, org tenant.Organization) (*tenant.Organization, error) {
	code, err := tenant.NormalizeCode(org.Code)
	if err != nil {
		return nil, err
	}
	modules := org.Modules
	if modules == nil {
		modules = []string{}
	}

	row := w.pool.QueryRow(ctx, `
		INSERT INTO organizations AS o (code, name, active, modules, aggregation_office)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			active = EXCLUDED.active,
			modules = EXCLUDED.modules,
			aggregation_office = EXCLUDED.aggregation_office
		RETURNING `+orgColumns, code, org.Name, org.Active, modules, org.AggregationOffice)
	return scanOrganization(row)
}

// PutMembership inserts or updates the membership of a user in an organization.
// An unknown organization yields tenant.ErrTenantNotFound, a second primary
// membership for the user tenant.ErrAmbiguousPrimaryMembership.
func (w *Writer) PutMembership(ctx context.Context, m tenant.Membership) (tenant.Membership, error) {
	if m.Role == "" {
		m.Role = tenant.RoleStaff
	}
	if _, err := tenant.ParseRole(string(m.Role)); err != nil {
		return tenant.Membership{}, err
	}

	err := w.pool.QueryRow(ctx, `
		INSERT INTO memberships (user_id, organization_id, role, is_primary, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, organization_id) DO UPDATE SET
			role = EXCLUDED.role,
			is_primary = EXCLUDED.is_primary,
			is_active = EXCLUDED.is_active
		RETURNING id`, m.UserID, m.OrganizationID, string(m.Role), m.Primary, m.Active).Scan(&m.ID)
	switch {
	case pg.IsForeignKeyViolationError(err):
		return tenant.Membership{}, errors.Join(tenant.ErrTenantNotFound, err)
	case pg.IsDuplicateKeyError(err):
		// memberships_one_primary: the user already has another primary membership.
		return tenant.Membership{}, errors.Join(tenant.ErrAmbiguousPrimaryMembership, err)
	case err != nil:
		return tenant.Membership{}, unavailable(err)
	}
	m.Organization = nil
	return m, nil
}
