// Package pgstore implements the tenant directory and membership lookups on
// PostgreSQL through pgx.
package pgstore

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/casekit/pkg/pg"
	"github.com/dmitrymomot/casekit/pkg/tenant"
)

// Migrations holds the schema, applied with pg.Migrate(ctx, pool, Migrations, MigrationsDir, ...).
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations.
const MigrationsDir = "migrations"

const orgColumns = `o.id, o.code, o.name, o.active, o.modules, o.aggregation_office, o.created_at`

// Directory implements tenant.Directory.
type Directory struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewDirectory creates a directory. A positive timeout bounds every query.
func NewDirectory(pool *pgxpool.Pool, timeout time.Duration) *Directory {
	return &Directory{pool: pool, timeout: timeout}
}

func (d *Directory) FindActiveByCode(ctx context.Context, code string) (*tenant.Organization, error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	row := d.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations o WHERE o.code = $1 AND o.active`, code)
	return scanOrganization(row)
}

func (d *Directory) FindActiveByID(ctx context.Context, id uuid.UUID) (*tenant.Organization, error) {
	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	row := d.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations o WHERE o.id = $1 AND o.active`, id)
	return scanOrganization(row)
}

// GetOrCreateDefault inserts the default organization on first use. Concurrent
// callers converge on the same row.
func (d *Directory) GetOrCreateDefault(ctx context.Context, code string) (*tenant.Organization, error) {
	code, err := tenant.NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, d.timeout)
	defer cancel()

	row := d.pool.QueryRow(ctx, `
		INSERT INTO organizations AS o (code, name)
		VALUES ($1, 'Default organization')
		ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
		RETURNING `+orgColumns, code)
	return scanOrganization(row)
}

// Memberships implements tenant.MembershipStore.
type Memberships struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewMemberships creates a membership store. A positive timeout bounds every query.
func NewMemberships(pool *pgxpool.Pool, timeout time.Duration) *Memberships {
	return &Memberships{pool: pool, timeout: timeout}
}

func (s *Memberships) FindActive(ctx context.Context, userID uuid.UUID) ([]tenant.Membership, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.user_id, m.organization_id, m.role, m.is_primary, m.is_active, `+orgColumns+`
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1 AND m.is_active AND o.active
		ORDER BY m.id`, userID)
	if err != nil {
		return nil, unavailable(err)
	}

	all, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (tenant.Membership, error) {
		var (
			m    tenant.Membership
			org  tenant.Organization
			role string
		)
		err := row.Scan(&m.ID, &m.UserID, &m.OrganizationID, &role, &m.Primary, &m.Active,
			&org.ID, &org.Code, &org.Name, &org.Active, &org.Modules, &org.AggregationOffice, &org.CreatedAt)
		m.Role = tenant.Role(role)
		m.Organization = &org
		return m, err
	})
	if err != nil {
		return nil, unavailable(err)
	}

	if len(all) == 0 {
		return nil, tenant.ErrMembershipNotFound
	}
	return all, nil
}

func (s *Memberships) IsActiveMember(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM memberships
			WHERE user_id = $1 AND organization_id = $2 AND is_active
		)`, userID, orgID).Scan(&ok)
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

func (s *Memberships) IsAggregationOfficeMember(ctx context.Context, userID uuid.UUID) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var ok bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM memberships m
			JOIN organizations o ON o.id = m.organization_id
			WHERE m.user_id = $1 AND m.is_active AND o.active AND o.aggregation_office
		)`, userID).Scan(&ok)
	if err != nil {
		return false, unavailable(err)
	}
	return ok, nil
}

// WithOrganization runs fn in a transaction scoped to the organization bound
// to ctx. The id is exposed to row-level security policies as
// current_setting('app.current_org_id') and is reset when the transaction ends.
func WithOrganization(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	orgID, ok := tenant.OrganizationIDFromContext(ctx)
	if !ok {
		return tenant.ErrNoOrganization
	}

	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT set_config('app.current_org_id', $1, true)`, orgID.String()); err != nil {
			return unavailable(err)
		}
		return fn(tx)
	})
}

func scanOrganization(row pgx.Row) (*tenant.Organization, error) {
	var org tenant.Organization
	err := row.Scan(&org.ID, &org.Code, &org.Name, &org.Active, &org.Modules, &org.AggregationOffice, &org.CreatedAt)
	if pg.IsNotFoundError(err) {
		return nil, tenant.ErrTenantNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return &org, nil
}

func unavailable(err error) error {
	return errors.Join(tenant.ErrStoreUnavailable, err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
